package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/seatly/seatly/internal/domain"
	"github.com/seatly/seatly/internal/observability"
)

// MomoConfig carries the partner credentials and callback URLs for the MoMo
// v2 gateway.
type MomoConfig struct {
	PartnerCode string
	AccessKey   string
	SecretKey   string
	Endpoint    string
	IPNURL      string
	RedirectURL string
}

// MomoAdapter opens payments on the MoMo v2 gateway. The orderId it sends is
// "{bookingID}-{unix ms}" and comes back verbatim on the IPN callback, which
// is how the webhook layer finds the booking again.
type MomoAdapter struct {
	cfg    MomoConfig
	http   *http.Client
	logger observability.Logger
}

func NewMomoAdapter(cfg MomoConfig, logger observability.Logger) *MomoAdapter {
	return &MomoAdapter{
		cfg:    cfg,
		http:   &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

func (a *MomoAdapter) Provider() domain.PaymentProvider {
	return domain.ProviderMomo
}

type momoCreateRequest struct {
	PartnerCode string `json:"partnerCode"`
	PartnerName string `json:"partnerName"`
	RequestType string `json:"requestType"`
	IPNURL      string `json:"ipnUrl"`
	RedirectURL string `json:"redirectUrl"`
	OrderID     string `json:"orderId"`
	Amount      int64  `json:"amount"`
	Lang        string `json:"lang"`
	OrderInfo   string `json:"orderInfo"`
	RequestID   string `json:"requestId"`
	ExtraData   string `json:"extraData"`
	Signature   string `json:"signature"`
	AutoCapture bool   `json:"autoCapture"`
}

type momoCreateResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	PayURL     string `json:"payUrl"`
	ShortLink  string `json:"shortLink"`
	Deeplink   string `json:"deeplink"`
	OrderID    string `json:"orderId"`
}

func (a *MomoAdapter) CreatePaymentLink(ctx context.Context, params CreateLinkParams) (*LinkResult, error) {
	if a.cfg.PartnerCode == "" || a.cfg.AccessKey == "" || a.cfg.SecretKey == "" || a.cfg.IPNURL == "" || a.cfg.RedirectURL == "" {
		return nil, errors.Wrap(domain.ErrInvalidInput, "momo configuration incomplete")
	}

	amount := int64(params.Amount + 0.5)
	orderID := fmt.Sprintf("%s-%d", params.BookingID, time.Now().UnixMilli())
	requestID := uuid.NewString()
	const requestType = "payWithMethod"
	extraData := ""

	// The gateway signs request fields in this exact alphabetical order.
	raw := fmt.Sprintf("accessKey=%s&amount=%d&extraData=%s&ipnUrl=%s&orderId=%s&orderInfo=%s&partnerCode=%s&redirectUrl=%s&requestId=%s&requestType=%s",
		a.cfg.AccessKey, amount, extraData, a.cfg.IPNURL, orderID, params.OrderInfo,
		a.cfg.PartnerCode, a.cfg.RedirectURL, requestID, requestType)
	mac := hmac.New(sha256.New, []byte(a.cfg.SecretKey))
	mac.Write([]byte(raw))
	signature := hex.EncodeToString(mac.Sum(nil))

	body, err := json.Marshal(momoCreateRequest{
		PartnerCode: a.cfg.PartnerCode,
		PartnerName: "MoMo",
		RequestType: requestType,
		IPNURL:      a.cfg.IPNURL,
		RedirectURL: a.cfg.RedirectURL,
		OrderID:     orderID,
		Amount:      amount,
		Lang:        "vi",
		OrderInfo:   params.OrderInfo,
		RequestID:   requestID,
		ExtraData:   extraData,
		Signature:   signature,
		AutoCapture: true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "momo create request"), domain.ErrTransient)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "momo create response")
	}
	if resp.StatusCode >= 500 {
		return nil, errors.Mark(errors.Newf("momo create status %d", resp.StatusCode), domain.ErrTransient)
	}

	var out momoCreateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, errors.Wrap(err, "momo create decode")
	}
	if out.ResultCode != 0 {
		a.logger.WithField("result_code", out.ResultCode).WithField("message", out.Message).
			Error("momo rejected payment creation")
		return nil, errors.Newf("momo create failed: %s (code %d)", out.Message, out.ResultCode)
	}

	payURL := out.PayURL
	if payURL == "" {
		payURL = out.ShortLink
	}
	if payURL == "" {
		payURL = out.Deeplink
	}
	if payURL == "" {
		return nil, errors.New("momo response missing pay url")
	}
	return &LinkResult{URL: payURL, SessionID: out.OrderID}, nil
}
