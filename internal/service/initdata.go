package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/set-night/rewardhub/internal/config"
	"github.com/set-night/rewardhub/internal/domain"
)

// webAppDataLabel is the fixed key of the first HMAC stage defined by
// Telegram for Mini App init data.
const webAppDataLabel = "WebAppData"

// Session is the verified content of a Mini App init data payload.
type Session struct {
	AuthDate  time.Time
	UserID    int64 // zero when the payload carries no user
	FirstName string
	Username  string
}

// InitDataVerifier checks Telegram Mini App init data signatures.
type InitDataVerifier struct {
	botToken string
	maxAge   time.Duration
	now      func() time.Time
}

func NewInitDataVerifier(botToken string) *InitDataVerifier {
	return &InitDataVerifier{
		botToken: botToken,
		maxAge:   config.InitDataMaxAge,
		now:      time.Now,
	}
}

// Verify validates raw and returns the session it describes.
func (v *InitDataVerifier) Verify(raw string) (*Session, error) {
	if v.botToken == "" {
		return nil, domain.ErrBotTokenMissing
	}
	if raw == "" {
		return nil, domain.ErrInitDataInvalid
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, domain.ErrInitDataInvalid
	}
	hash := values.Get("hash")
	if hash == "" {
		return nil, domain.ErrInitDataInvalid
	}
	values.Del("hash")

	expected := SignInitData(v.botToken, values)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(hash))) {
		return nil, domain.ErrInitDataInvalid
	}

	authDateParam := values.Get("auth_date")
	if authDateParam == "" {
		return nil, domain.ErrInitDataInvalid
	}
	unix, err := strconv.ParseInt(authDateParam, 10, 64)
	if err != nil {
		return nil, domain.ErrInitDataInvalid
	}
	authDate := time.Unix(unix, 0)
	now := v.now()
	if now.Sub(authDate) > v.maxAge || authDate.After(now.Add(config.InitDataClockSkew)) {
		return nil, domain.ErrInitDataInvalid
	}

	session := &Session{AuthDate: authDate}
	if rawUser := values.Get("user"); rawUser != "" {
		var u struct {
			ID        int64  `json:"id"`
			FirstName string `json:"first_name"`
			Username  string `json:"username"`
		}
		if err := json.Unmarshal([]byte(rawUser), &u); err != nil {
			return nil, domain.ErrInitDataInvalid
		}
		session.UserID = u.ID
		session.FirstName = u.FirstName
		session.Username = u.Username
	}
	return session, nil
}

// CheckUser rejects a session bound to a different user than userID.
func (s *Session) CheckUser(userID int64) error {
	if s.UserID != 0 && s.UserID != userID {
		return domain.ErrUserMismatch
	}
	return nil
}

// RequireUser is the strict form of CheckUser used by privileged requests:
// the payload must name the user.
func (s *Session) RequireUser(userID int64) error {
	if s.UserID == 0 {
		return domain.ErrUserMismatch
	}
	return s.CheckUser(userID)
}

// SignInitData computes the hex hash Telegram attaches to init data fields
// (without the hash field itself).
func SignInitData(botToken string, fields url.Values) string {
	pairs := make([]string, 0, len(fields))
	for k, vs := range fields {
		if k == "hash" || len(vs) == 0 {
			continue
		}
		pairs = append(pairs, k+"="+vs[0])
	}
	sort.Strings(pairs)
	dataCheckString := strings.Join(pairs, "\n")

	secret := hmac.New(sha256.New, []byte(webAppDataLabel))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(dataCheckString))
	return hex.EncodeToString(mac.Sum(nil))
}
