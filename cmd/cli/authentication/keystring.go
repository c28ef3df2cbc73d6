package authentication

// keystring.go keeps the station token in the OS keyring, on the client side.
import (
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zalando/go-keyring"
)

const (
	serviceName = "linetest-cli"
	tokenKey    = "station_token"
)

var ErrEmptyToken = errors.New("token is empty")

type StoredToken struct {
	Token     string `json:"token"`
	Station   string `json:"station,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
	SavedAt   int64  `json:"saved_at"`
}

// Describe reads the station and expiry from an unverified token. Only the
// server holds the secret, so the CLI never checks the signature.
func Describe(token string) (station string, expiresAt int64) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", 0
	}
	station, _ = claims["station"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Unix()
	}
	return station, expiresAt
}

func StoreToken(token string) (*StoredToken, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	stored := &StoredToken{Token: token, SavedAt: time.Now().Unix()}
	stored.Station, stored.ExpiresAt = Describe(token)

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, err
	}
	if err := keyring.Set(serviceName, tokenKey, string(data)); err != nil {
		return nil, err
	}
	return stored, nil
}

func GetToken() (*StoredToken, error) {
	value, err := keyring.Get(serviceName, tokenKey)
	if err != nil {
		return nil, err
	}

	var stored StoredToken
	if err := json.Unmarshal([]byte(value), &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func DeleteToken() error {
	return keyring.Delete(serviceName, tokenKey)
}
