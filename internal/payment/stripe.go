package payment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/seatly/seatly/internal/domain"
	"github.com/seatly/seatly/internal/observability"
)

const stripeCheckoutURL = "https://api.stripe.com/v1/checkout/sessions"

// StripeAdapter opens Stripe Checkout sessions. The session id it returns is
// the same id Stripe later sends in checkout.session.* webhook events.
type StripeAdapter struct {
	secretKey string
	clientURL string
	http      *http.Client
	logger    observability.Logger
}

func NewStripeAdapter(secretKey, clientURL string, logger observability.Logger) *StripeAdapter {
	return &StripeAdapter{
		secretKey: secretKey,
		clientURL: clientURL,
		http:      &http.Client{Timeout: 15 * time.Second},
		logger:    logger,
	}
}

func (a *StripeAdapter) Provider() domain.PaymentProvider {
	return domain.ProviderStripe
}

func (a *StripeAdapter) CreatePaymentLink(ctx context.Context, params CreateLinkParams) (*LinkResult, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", a.clientURL+"/payment/success?bookingId="+params.BookingID.String())
	form.Set("cancel_url", a.clientURL+"/payment/cancel?bookingId="+params.BookingID.String())
	form.Set("metadata[booking_id]", params.BookingID.String())
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", "vnd")
	form.Set("line_items[0][price_data][product_data][name]", params.OrderInfo)
	// VND is a zero-decimal currency on Stripe.
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(int64(params.Amount), 10))
	// Checkout sessions expire server-side too, as a backstop to the seat TTL.
	form.Set("expires_at", strconv.FormatInt(time.Now().Add(30*time.Minute).Unix(), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, stripeCheckoutURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "stripe checkout request"), domain.ErrTransient)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "stripe checkout response")
	}
	if resp.StatusCode >= 500 {
		return nil, errors.Mark(errors.Newf("stripe checkout status %d", resp.StatusCode), domain.ErrTransient)
	}
	if resp.StatusCode != http.StatusOK {
		a.logger.WithField("status", resp.StatusCode).Error("stripe checkout session rejected")
		return nil, errors.Newf("stripe checkout status %d", resp.StatusCode)
	}

	var session struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, errors.Wrap(err, "stripe checkout decode")
	}
	if session.ID == "" || session.URL == "" {
		return nil, errors.New("stripe checkout session missing id or url")
	}
	return &LinkResult{URL: session.URL, SessionID: session.ID}, nil
}
