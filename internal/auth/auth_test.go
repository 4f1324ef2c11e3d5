package auth

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestJWTRoundTrip(t *testing.T) {
	secret := "test-secret"

	token, err := GenerateJWT(secret, 42, 123456789, "owner", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseJWT(secret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.ExternalID != 123456789 {
		t.Errorf("ExternalID = %d, want 123456789", claims.ExternalID)
	}
	if claims.Role != "owner" {
		t.Errorf("Role = %q, want owner", claims.Role)
	}
}

func TestJWTWrongSecret(t *testing.T) {
	token, err := GenerateJWT("secret-a", 1, 1, "advertiser", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseJWT("secret-b", token); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestJWTExpired(t *testing.T) {
	short, err := GenerateJWT("secret", 1, 1, "owner", time.Millisecond)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := ParseJWT("secret", short); err == nil {
		t.Fatal("expected error for expired token")
	}
}

// buildInitData assembles initData with a valid hash and the given auth_date.
func buildInitData(botToken string, authDate time.Time, extra map[string]string) string {
	params := url.Values{}
	params.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	for k, v := range extra {
		params.Set(k, v)
	}

	var pairs []string
	for key, values := range params {
		for _, v := range values {
			pairs = append(pairs, fmt.Sprintf("%s=%s", key, v))
		}
	}
	sort.Strings(pairs)
	dataCheckString := strings.Join(pairs, "\n")

	secretKey := hmacSHA256([]byte("WebAppData"), []byte(botToken))
	hash := hmacSHA256(secretKey, []byte(dataCheckString))
	params.Set("hash", hex.EncodeToString(hash))

	return params.Encode()
}

func TestValidateTelegramWebAppData_ValidHash(t *testing.T) {
	botToken := "test-bot-token-12345"

	initData := buildInitData(botToken, time.Now().Add(-30*time.Second), map[string]string{
		"query_id": "test_query_id",
		"user":     `{"id":123456,"first_name":"Test","username":"testuser"}`,
	})

	result, err := ValidateTelegramWebAppData(initData, botToken, 5*time.Minute)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.Get("query_id") != "test_query_id" {
		t.Errorf("expected query_id=test_query_id, got %s", result.Get("query_id"))
	}
}

func TestValidateTelegramWebAppData_ExpiredAuthDate(t *testing.T) {
	botToken := "test-bot-token-12345"

	initData := buildInitData(botToken, time.Now().Add(-10*time.Minute), map[string]string{
		"user": `{"id":123456}`,
	})

	_, err := ValidateTelegramWebAppData(initData, botToken, 5*time.Minute)
	if err == nil {
		t.Fatal("expected error for expired initData")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Errorf("expected 'expired' in error, got: %s", err.Error())
	}
}

func TestValidateTelegramWebAppData_FutureAuthDate(t *testing.T) {
	botToken := "test-bot-token-12345"

	initData := buildInitData(botToken, time.Now().Add(5*time.Minute), map[string]string{
		"user": `{"id":123456}`,
	})

	_, err := ValidateTelegramWebAppData(initData, botToken, 5*time.Minute)
	if err == nil {
		t.Fatal("expected error for future auth_date")
	}
}

func TestValidateTelegramWebAppData_InvalidHash(t *testing.T) {
	params := url.Values{}
	params.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
	params.Set("user", `{"id":123456}`)
	params.Set("hash", "invalidhash")

	_, err := ValidateTelegramWebAppData(params.Encode(), "test-bot-token-12345", 5*time.Minute)
	if err == nil {
		t.Fatal("expected error for invalid hash")
	}
}

func TestValidateTelegramWebAppData_MissingHash(t *testing.T) {
	params := url.Values{}
	params.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))

	_, err := ValidateTelegramWebAppData(params.Encode(), "token", 5*time.Minute)
	if err == nil {
		t.Fatal("expected error for missing hash")
	}
}
