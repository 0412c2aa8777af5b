package tokencodec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/fastygo/qcconsole/domain"
)

func mint(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestDecodeExpiredToken(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	token := mint(t, jwt.MapClaims{"exp": now.Add(-time.Second).Unix()})

	info, err := Decode(token, now)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !info.IsExpired {
		t.Fatalf("expected expired token")
	}
	if info.TimeUntilExpiry != 0 {
		t.Fatalf("expected zero remaining, got %s", info.TimeUntilExpiry)
	}
	if info.ExpiryDate == nil || !info.ExpiryDate.Equal(now.Add(-time.Second)) {
		t.Fatalf("unexpected expiry date %v", info.ExpiryDate)
	}
}

func TestDecodeValidToken(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	token := mint(t, jwt.MapClaims{"exp": now.Add(600 * time.Second).Unix(), "sub": "u-1"})

	info, err := Decode(token, now)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.IsExpired {
		t.Fatalf("token should not be expired")
	}
	if info.TimeUntilExpiry <= 0 || info.TimeUntilExpiry > 600*time.Second {
		t.Fatalf("unexpected remaining %s", info.TimeUntilExpiry)
	}
}

func TestDecodeExpiryBoundaryIsExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	token := mint(t, jwt.MapClaims{"exp": now.Unix()})

	info, err := Decode(token, now)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !info.IsExpired {
		t.Fatalf("token expiring exactly now must be expired")
	}
}

func TestDecodeMalformed(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "single segment", token: "abc"},
		{name: "bad base64", token: "aaa.!!!.bbb"},
		{name: "bad json", token: "eyJhbGciOiJIUzI1NiJ9.bm90LWpzb24.sig"},
		{name: "missing exp", token: mint(t, jwt.MapClaims{"sub": "u-1"})},
		{name: "string exp", token: mint(t, jwt.MapClaims{"exp": "tomorrow"})},
		{name: "exp beyond int64 millis", token: assemble(`{"alg":"HS256"}`, `{"exp":1e300}`)},
		{name: "negative exp beyond int64 millis", token: assemble(`{"alg":"HS256"}`, `{"exp":-1e300}`)},
		{name: "four segments", token: "a.b.c.d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := Decode(tt.token, now)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !domain.IsDomainError(err, domain.ErrCodeInvalid) && !errors.Is(err, domain.ErrTokenMalformed) {
				t.Fatalf("unexpected error type: %v", err)
			}
			if !info.IsExpired || info.ExpiryDate != nil {
				t.Fatalf("malformed token must decode as expired, got %+v", info)
			}
		})
	}
}

func TestExpiryInfoFailsClosed(t *testing.T) {
	info := ExpiryInfo("not-a-token", time.Now())
	if !info.IsExpired || info.TimeUntilExpiry != 0 || info.ExpiryDate != nil {
		t.Fatalf("expected fail-closed info, got %+v", info)
	}
}

func assemble(header, payload string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(header)) + "." + enc.EncodeToString([]byte(payload)) + ".sig"
}

func TestDecodeIgnoresHeader(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	payload := fmt.Sprintf(`{"exp":%d}`, now.Add(10*time.Minute).Unix())
	tests := []struct {
		name  string
		token string
	}{
		{name: "no alg", token: assemble(`{"typ":"JWT"}`, payload)},
		{name: "unregistered alg", token: assemble(`{"alg":"ES256K"}`, payload)},
		{name: "header not base64", token: "!!!." + base64.RawURLEncoding.EncodeToString([]byte(payload)) + ".sig"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := Decode(tt.token, now)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if info.IsExpired || info.TimeUntilExpiry != 10*time.Minute {
				t.Fatalf("unexpected info %+v", info)
			}
		})
	}
}
