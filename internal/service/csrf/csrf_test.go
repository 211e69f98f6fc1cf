package csrf

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Controllable clock
type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func TestSign(t *testing.T) {
	// RFC 4231, test case 2
	got := Sign("what do ya want for nothing?", "Jefe")

	require.Equal(t, "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843", got)
	require.Equal(t, got, Sign("what do ya want for nothing?", "Jefe"), "signing must be deterministic")
	require.NotEqual(t, got, Sign("what do ya want for nothing?", "jefe"), "secret must affect signature")
}

func TestManager(t *testing.T) {
	issuedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	newManager := func(t *testing.T) (*Manager, *clock) {
		c := &clock{now: issuedAt}
		m, err := New(Config{Secret: "test-secret", Now: c.Now})
		require.NoError(t, err)
		return m, c
	}

	t.Run("new defaults", func(t *testing.T) {
		m, err := New(Config{Secret: "secret"})

		require.NoError(t, err)
		require.Equal(t, 2*time.Hour, m.TTL(), "default ttl should be two hours")
		require.NotNil(t, m.now)
	})

	t.Run("new without secret fails", func(t *testing.T) {
		_, err := New(Config{})

		require.Error(t, err)
	})

	t.Run("issue format", func(t *testing.T) {
		m, _ := newManager(t)

		token, err := m.Issue("")

		require.NoError(t, err)
		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)
		require.Equal(t, strconv.FormatInt(issuedAt.UnixMilli(), 10), parts[0])
		require.Len(t, parts[1], 32, "nonce should be 16 bytes hex encoded")
		require.Equal(t, Sign(parts[0]+"."+parts[1]+".", "test-secret"), parts[2])
	})

	t.Run("tokens are unique", func(t *testing.T) {
		m, _ := newManager(t)

		first, err := m.Issue("user")
		require.NoError(t, err)
		second, err := m.Issue("user")
		require.NoError(t, err)

		require.NotEqual(t, first, second)
	})

	t.Run("valid within ttl", func(t *testing.T) {
		ages := []time.Duration{0, time.Millisecond, time.Hour, 2*time.Hour - time.Millisecond, 2 * time.Hour}

		for _, age := range ages {
			m, c := newManager(t)
			token, err := m.Issue("user-1")
			require.NoError(t, err)

			c.now = issuedAt.Add(age)

			require.NoErrorf(t, m.Verify(token, "user-1"), "token aged %s should be valid", age)
		}
	})

	t.Run("expired after ttl", func(t *testing.T) {
		ages := []time.Duration{2*time.Hour + time.Millisecond, 3 * time.Hour, 48 * time.Hour}

		for _, age := range ages {
			m, c := newManager(t)
			token, err := m.Issue("user-1")
			require.NoError(t, err)

			c.now = issuedAt.Add(age)

			require.ErrorIsf(t, m.Verify(token, "user-1"), ErrTokenExpired, "token aged %s should be expired", age)
		}
	})

	t.Run("future token", func(t *testing.T) {
		c := &clock{now: issuedAt}
		strict, err := New(Config{Secret: "s", Now: c.Now})
		require.NoError(t, err)
		lenient, err := New(Config{Secret: "s", Now: c.Now, ClockSkew: time.Minute})
		require.NoError(t, err)

		token, err := strict.Issue("")
		require.NoError(t, err)
		c.now = issuedAt.Add(-30 * time.Second)

		require.ErrorIs(t, strict.Verify(token, ""), ErrTokenExpired, "no skew allowed")
		require.NoError(t, lenient.Verify(token, ""), "skew should tolerate 30 seconds")
	})

	t.Run("bound to user key", func(t *testing.T) {
		m, _ := newManager(t)

		token, err := m.Issue("user-1")
		require.NoError(t, err)

		require.ErrorIs(t, m.Verify(token, "user-2"), ErrTokenSignature)
		require.ErrorIs(t, m.Verify(token, ""), ErrTokenSignature)
	})

	t.Run("other secret fails", func(t *testing.T) {
		m, c := newManager(t)
		other, err := New(Config{Secret: "other-secret", Now: c.Now})
		require.NoError(t, err)

		token, err := m.Issue("")
		require.NoError(t, err)

		require.ErrorIs(t, other.Verify(token, ""), ErrTokenSignature)
	})

	t.Run("any signature flip fails", func(t *testing.T) {
		m, _ := newManager(t)
		token, err := m.Issue("user-1")
		require.NoError(t, err)

		sigStart := strings.LastIndex(token, ".") + 1
		for i := sigStart; i < len(token); i++ {
			flipped := []byte(token)
			if flipped[i] == '0' {
				flipped[i] = '1'
			} else {
				flipped[i] = '0'
			}

			require.ErrorIsf(t, m.Verify(string(flipped), "user-1"), ErrTokenSignature, "flip at %d must fail", i)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		m, _ := newManager(t)
		token, err := m.Issue("")
		require.NoError(t, err)
		parts := strings.Split(token, ".")

		tests := []struct {
			name  string
			token string
			err   error
		}{
			{"empty", "", ErrTokenMalformed},
			{"two parts", parts[0] + "." + parts[1], ErrTokenMalformed},
			{"four parts", token + ".extra", ErrTokenMalformed},
			{"not numeric timestamp", "abc." + parts[1] + "." + parts[2], ErrTokenMalformed},
			{"negative timestamp", "-1." + parts[1] + "." + parts[2], ErrTokenMalformed},
			{"empty nonce", parts[0] + ".." + parts[2], ErrTokenMalformed},
			{"empty signature", parts[0] + "." + parts[1] + ".", ErrTokenMalformed},
			{"short signature", parts[0] + "." + parts[1] + "." + parts[2][:10], ErrTokenSignature},
			{"long signature", token + "00", ErrTokenSignature},
			{"tampered nonce", parts[0] + ".ffff." + parts[2], ErrTokenSignature},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				require.ErrorIs(t, m.Verify(tt.token, ""), tt.err)
			})
		}
	})
}
