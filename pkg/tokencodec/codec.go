// Package tokencodec reads the claimed expiry of a bearer token without
// verifying its signature. Trust is enforced by the backend on every request;
// the console only uses the expiry to decide when a session is dead.
package tokencodec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/fastygo/qcconsole/domain"
)

// maxExpSeconds keeps exp*1000 inside int64 milliseconds.
const maxExpSeconds = float64(math.MaxInt64 / 1000)

// Decode reads the payload segment of token and reports its expiry relative to now.
// Any malformed input is returned as an error wrapping domain.ErrTokenMalformed.
func Decode(token string, now time.Time) (domain.TokenExpiryInfo, error) {
	if token == "" {
		return domain.ExpiredInfo(), domain.ErrTokenMalformed
	}

	claims, err := payloadClaims(token)
	if err != nil {
		return domain.ExpiredInfo(), domain.WrapError(domain.ErrCodeInvalid, domain.ErrTokenMalformed.Message, err)
	}

	expiry, err := expiryOf(claims)
	if err != nil {
		return domain.ExpiredInfo(), domain.WrapError(domain.ErrCodeInvalid, domain.ErrTokenMalformed.Message, err)
	}

	remaining := expiry.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return domain.TokenExpiryInfo{
		IsExpired:       !now.Before(expiry),
		TimeUntilExpiry: remaining,
		ExpiryDate:      &expiry,
	}, nil
}

// ExpiryInfo is Decode with errors folded into an expired answer.
func ExpiryInfo(token string, now time.Time) domain.TokenExpiryInfo {
	info, err := Decode(token, now)
	if err != nil {
		return domain.ExpiredInfo()
	}
	return info
}

// payloadClaims decodes only the middle segment. The header is never read,
// so an unknown or missing alg does not affect the expiry.
func payloadClaims(token string) (jwt.MapClaims, error) {
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return nil, fmt.Errorf("token has %d segments, want 3", len(segments))
	}
	raw, err := jwt.DecodeSegment(segments[1])
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	claims := jwt.MapClaims{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&claims); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}
	return claims, nil
}

func expiryOf(claims jwt.MapClaims) (time.Time, error) {
	raw, ok := claims["exp"]
	if !ok {
		return time.Time{}, fmt.Errorf("exp claim missing")
	}

	var seconds float64
	switch v := raw.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("exp claim not numeric: %w", err)
		}
		seconds = f
	case float64:
		seconds = v
	default:
		return time.Time{}, fmt.Errorf("exp claim has type %T", raw)
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || math.Abs(seconds) > maxExpSeconds {
		return time.Time{}, fmt.Errorf("exp claim out of range")
	}
	return time.UnixMilli(int64(seconds * 1000)), nil
}
