package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	initdata "github.com/telegram-mini-apps/init-data-golang"

	"github.com/GregMSThompson/household-ledger/internal/errs"
	"github.com/GregMSThompson/household-ledger/internal/models"
)

const TelegramInitDataHeader = "X-Telegram-Init-Data"

// TelegramVerifier checks Mini App initData signed with the bot token.
type TelegramVerifier struct {
	botToken string
	maxAge   time.Duration
}

// NewTelegramVerifier accepts initData no older than maxAge; zero disables
// the age check.
func NewTelegramVerifier(botToken string, maxAge time.Duration) *TelegramVerifier {
	return &TelegramVerifier{botToken: botToken, maxAge: maxAge}
}

func (v *TelegramVerifier) Verify(r *http.Request) (models.Identity, error) {
	raw := r.Header.Get(TelegramInitDataHeader)
	if raw == "" {
		return models.Identity{}, errs.NewUnauthenticatedError("missing " + TelegramInitDataHeader + " header")
	}

	if err := initdata.Validate(raw, v.botToken, v.maxAge); err != nil {
		if errors.Is(err, initdata.ErrExpired) {
			return models.Identity{}, errs.NewUnauthenticatedError("init data expired")
		}
		return models.Identity{}, errs.NewUnauthenticatedError("invalid init data: " + err.Error())
	}

	data, err := initdata.Parse(raw)
	if err != nil || data.User.ID == 0 {
		return models.Identity{}, errs.NewUnauthenticatedError("init data has no user")
	}
	return identityFromTelegram(data.User), nil
}

func identityFromTelegram(u initdata.User) models.Identity {
	first := u.FirstName
	if first == "" && u.LastName == "" {
		first = u.Username
	}
	return models.Identity{
		UID:       "tg:" + strconv.FormatInt(u.ID, 10),
		FirstName: first,
		LastName:  u.LastName,
		Avatar:    u.PhotoURL,
	}
}
