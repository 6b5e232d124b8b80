package sheets

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

var mon = monkit.Package()

// valueInputOption makes the spreadsheet parse written values the way it
// parses typed input.
const valueInputOption = "USER_ENTERED"

// Config configures the Google Sheets client.
type Config struct {
	SpreadsheetID   string
	CredentialsFile string

	// MaxRetries bounds the attempts of one call when rate limited.
	MaxRetries int

	// MaxBackoff caps the exponential wait between attempts.
	MaxBackoff time.Duration

	// Options are appended to the service options. Tests use them to point
	// the client at a local endpoint.
	Options []option.ClientOption
}

// DefaultConfig returns the retry policy used in production.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 15,
		MaxBackoff: 60 * time.Second,
	}
}

// GoogleClient implements Client with the Sheets v4 API.
type GoogleClient struct {
	log     *zap.Logger
	service *sheetsapi.Service
	config  Config

	// sleep waits between retries; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGoogleClient creates a client authenticated with the service account
// credentials file.
func NewGoogleClient(ctx context.Context, log *zap.Logger, config Config) (*GoogleClient, error) {
	if config.SpreadsheetID == "" {
		return nil, Error.New("spreadsheet id is required")
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultConfig().MaxRetries
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = DefaultConfig().MaxBackoff
	}

	opts := []option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsScope)}
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}
	opts = append(opts, config.Options...)

	service, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, Error.New("unable to create Sheets client: %w", err)
	}

	return &GoogleClient{
		log:     log,
		service: service,
		config:  config,
		sleep:   sleepContext,
	}, nil
}

// ReadRange implements Client.
func (c *GoogleClient) ReadRange(ctx context.Context, a1 string) (_ [][]string, err error) {
	defer mon.Task()(&ctx)(&err)

	var resp *sheetsapi.ValueRange
	err = c.retry(ctx, "read "+a1, func() error {
		var err error
		resp, err = c.service.Spreadsheets.Values.Get(c.config.SpreadsheetID, a1).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, Error.New("failed to read %s: %w", a1, err)
	}
	return fromValues(resp.Values), nil
}

// AppendRange implements Client.
func (c *GoogleClient) AppendRange(ctx context.Context, a1 string, rows [][]string) (err error) {
	defer mon.Task()(&ctx)(&err)

	body := &sheetsapi.ValueRange{Values: toValues(rows)}
	err = c.retry(ctx, "append "+a1, func() error {
		_, err := c.service.Spreadsheets.Values.Append(c.config.SpreadsheetID, a1, body).
			ValueInputOption(valueInputOption).
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return Error.New("failed to append %s: %w", a1, err)
	}
	return nil
}

// UpdateRange implements Client.
func (c *GoogleClient) UpdateRange(ctx context.Context, a1 string, rows [][]string) (err error) {
	defer mon.Task()(&ctx)(&err)

	body := &sheetsapi.ValueRange{Values: toValues(rows)}
	err = c.retry(ctx, "update "+a1, func() error {
		_, err := c.service.Spreadsheets.Values.Update(c.config.SpreadsheetID, a1, body).
			ValueInputOption(valueInputOption).
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return Error.New("failed to update %s: %w", a1, err)
	}
	return nil
}

// retry runs call until it succeeds, fails with an error other than a rate
// limit, or runs out of attempts.
func (c *GoogleClient) retry(ctx context.Context, what string, call func() error) error {
	var err error
	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		if err = call(); err == nil {
			return nil
		}
		if !IsRateLimited(err) {
			return err
		}

		backoff := Backoff(attempt, c.config.MaxBackoff)
		c.log.Warn("rate limited by Google Sheets API, retrying",
			zap.String("call", what),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff))
		if err := c.sleep(ctx, backoff); err != nil {
			return err
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", c.config.MaxRetries, err)
}

// IsRateLimited reports whether err is a quota rejection of the Sheets API.
func IsRateLimited(err error) bool {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return false
	}
	return gErr.Code == http.StatusTooManyRequests || gErr.Code == http.StatusForbidden
}

// Backoff returns 2^attempt seconds capped at max.
func Backoff(attempt int, max time.Duration) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	if backoff > max || backoff <= 0 {
		return max
	}
	return backoff
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func toValues(rows [][]string) [][]interface{} {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = make([]interface{}, len(row))
		for j, cell := range row {
			values[i][j] = cell
		}
	}
	return values
}

func fromValues(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		rows[i] = make([]string, len(row))
		for j, cell := range row {
			if s, ok := cell.(string); ok {
				rows[i][j] = s
			} else if cell != nil {
				rows[i][j] = fmt.Sprint(cell)
			}
		}
	}
	return rows
}
