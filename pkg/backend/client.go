package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/go-connections/tlsconfig"
	"github.com/opencontainers/go-digest"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/xerrors"
	resty "resty.dev/v3"

	"github.com/sysdiglabs/secure-inline-scan/pkg/ext"
)

const (
	// ResponseLog is the diagnostics file kept on the staging area. Its
	// presence also marks the staging area as dirty for cleanup purposes.
	ResponseLog = "scan-response.json"

	uploadDelay = 2 * time.Second
	pollDelay   = 1 * time.Second
)

type Config struct {
	BaseURL     string
	Token       string
	PostRetries int
	GetRetries  int
	InsecureTLS bool
	StagingDir  string
}

// Client talks to the remote scanning backend. Upload and poll are two
// independent bounded retry loops with fixed inter-attempt delays.
type Client struct {
	http       *resty.Client
	ambassador ext.Ambassador

	postRetries int
	getRetries  int
	postDelay   time.Duration
	getDelay    time.Duration

	stagingDir string
	out        io.Writer
}

func NewClient(cfg Config, ambassador ext.Ambassador) *Client {
	tlsCfg := tlsconfig.ClientDefault()
	tlsCfg.InsecureSkipVerify = cfg.InsecureTLS

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.Token).
		SetTLSClientConfig(tlsCfg)

	return &Client{
		http:        httpClient,
		ambassador:  ambassador,
		postRetries: cfg.PostRetries,
		getRetries:  cfg.GetRetries,
		postDelay:   uploadDelay,
		getDelay:    pollDelay,
		stagingDir:  cfg.StagingDir,
		out:         os.Stdout,
	}
}

// CheckConnectivity probes the policy listing endpoint to fail fast on an
// unreachable backend or an invalid token.
func (c *Client) CheckConnectivity(ctx context.Context) error {
	res, err := c.http.R().SetContext(ctx).Get("/policies")
	if err != nil {
		return xerrors.Errorf("backend is unreachable: %w", err)
	}
	if res.StatusCode() != http.StatusOK {
		return xerrors.Errorf("backend rejected the connectivity probe: status %d: %s", res.StatusCode(), res.String())
	}
	return nil
}

// AccountName resolves the caller's account from the bearer token. The call
// is not retried: nothing later in the pipeline can succeed without a valid
// account binding, so any non-200 response is fatal with the raw body
// surfaced for diagnosis.
func (c *Client) AccountName(ctx context.Context) (string, error) {
	res, err := c.http.R().SetContext(ctx).Get("/anchore/account")
	if err != nil {
		return "", xerrors.Errorf("resolving account: %w", err)
	}
	if res.StatusCode() != http.StatusOK {
		return "", xerrors.Errorf("resolving account: status %d: %s", res.StatusCode(), res.String())
	}

	name := gjson.Get(res.String(), "name").String()
	if name == "" {
		return "", xerrors.Errorf("resolving account: response carries no account name: %s", res.String())
	}
	return name, nil
}

// ImportImage uploads the analysis archive with at most postRetries
// attempts. An attempt ends the loop as soon as any HTTP status is
// observed; only an empty response from an unreachable endpoint triggers a
// retry. If the status standing after the loop is not 200 the upload is a
// fatal failure and the response body is surfaced.
func (c *Client) ImportImage(ctx context.Context, archivePath string) error {
	var (
		status int
		body   string
	)

	for attempt := 1; attempt <= c.postRetries; attempt++ {
		log.WithFields(log.Fields{
			"attempt": attempt,
			"of":      c.postRetries,
		}).Debug("Uploading analysis archive")

		res, err := c.http.R().
			SetContext(ctx).
			SetFile("archive", archivePath).
			Post("/import/images")
		if err == nil && res.StatusCode() != 0 {
			status = res.StatusCode()
			body = res.String()
			break
		}

		if err != nil {
			log.WithError(err).WithField("attempt", attempt).Warn("Upload attempt got no response")
		}
		if attempt < c.postRetries {
			if err := sleep(ctx, c.postDelay); err != nil {
				return err
			}
		}
	}

	if status != http.StatusOK {
		if status == 0 {
			return xerrors.Errorf("uploading analysis archive: no response after %d attempts", c.postRetries)
		}
		return xerrors.Errorf("uploading analysis archive: status %d: %s", status, body)
	}

	c.logResponse(body)
	return nil
}

// PollVerdict queries the check summary for the uploaded digest and tag with
// at most getRetries attempts, ending the loop as soon as the response
// carries a non-empty status field. The full raw report is always printed;
// a status that never became non-empty fails closed.
func (c *Client) PollVerdict(ctx context.Context, d digest.Digest, tag string) (ScanVerdict, error) {
	var (
		extracted string
		body      string
	)

	path := fmt.Sprintf("/images/%s/checkSummary", d.String())

	for attempt := 1; attempt <= c.getRetries; attempt++ {
		res, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("tag", tag).
			Get(path)
		if err != nil {
			if ctx.Err() != nil {
				return ScanVerdict{}, ctx.Err()
			}
			log.WithError(err).WithField("attempt", attempt).Debug("Poll attempt failed")
		} else {
			body = res.String()
			extracted = gjson.Get(body, "status").String()
			if extracted != "" {
				break
			}
			log.WithFields(log.Fields{
				"attempt": attempt,
				"of":      c.getRetries,
			}).Debug("Scan result not ready yet")
		}

		if attempt < c.getRetries {
			if err := sleep(ctx, c.getDelay); err != nil {
				return ScanVerdict{}, err
			}
		}
	}

	c.logResponse(body)
	fmt.Fprintln(c.out, body)

	verdict := ScanVerdict{Status: StatusFail, Report: []byte(body)}
	switch extracted {
	case "pass":
		verdict.Status = StatusPass
	case "":
		verdict.Status = StatusUnknown
	}
	return verdict, nil
}

func (c *Client) logResponse(body string) {
	if body == "" || c.stagingDir == "" {
		return
	}
	path := filepath.Join(c.stagingDir, ResponseLog)
	if err := c.ambassador.WriteFile(path, []byte(body), 0o644); err != nil {
		log.WithError(err).Warn("Could not write backend response log")
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
