package gmail

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/mailreeve/mailreeve/internal/fileutil"
)

// Scope grants full mailbox access. Permanent deletion needs it; the
// narrower gmail.modify scope rejects messages.delete and batchDelete.
const Scope = "https://mail.google.com/"

// ErrNoToken means no cached token exists yet and the user must log in.
var ErrNoToken = errors.New("no cached credentials")

// LoadCredentials reads an OAuth client secrets file, the credentials.json
// downloaded from the Google Cloud console for a desktop app.
func LoadCredentials(path string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(data, Scope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials file: %w", err)
	}
	return cfg, nil
}

// TokenSource returns a source backed by the cached token at tokenPath.
// Refreshed tokens are written back with owner-only permissions so the
// next run skips the refresh.
func TokenSource(ctx context.Context, cfg *oauth2.Config, tokenPath string) (oauth2.TokenSource, error) {
	tok, err := loadToken(tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrNoToken, tokenPath)
		}
		return nil, err
	}
	// A token copied in by hand may carry group/world bits; tighten it.
	_ = fileutil.SecureChmod(tokenPath, 0600)
	return &cachingTokenSource{
		path: tokenPath,
		base: cfg.TokenSource(ctx, tok),
		last: tok,
	}, nil
}

// cachingTokenSource persists refreshed tokens back to disk. Refresh
// failures surface as AuthError so runs abort instead of retrying.
type cachingTokenSource struct {
	path string
	base oauth2.TokenSource

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *cachingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.base.Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			return nil, &AuthError{StatusCode: rerr.Response.StatusCode, Reason: "token refresh failed"}
		}
		return nil, &AuthError{Reason: err.Error()}
	}
	if s.last == nil || tok.AccessToken != s.last.AccessToken {
		// Best effort. A failed cache write costs one refresh next run.
		_ = saveToken(s.path, tok)
		s.last = tok
	}
	return tok, nil
}

// Login runs the OAuth authorization-code flow with a loopback redirect.
// The authorization URL is written to out for the user to open; once the
// browser redirects back, the exchanged token is saved to tokenPath.
func Login(ctx context.Context, cfg *oauth2.Config, tokenPath string, out io.Writer) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("start redirect listener: %w", err)
	}
	defer ln.Close()

	flowCfg := *cfg
	flowCfg.RedirectURL = fmt.Sprintf("http://%s/", ln.Addr().String())

	state, err := randomState()
	if err != nil {
		return err
	}

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("state") != state {
				http.Error(w, "state mismatch", http.StatusBadRequest)
				errCh <- errors.New("oauth state mismatch")
				return
			}
			if errMsg := q.Get("error"); errMsg != "" {
				http.Error(w, "authorization denied", http.StatusBadRequest)
				errCh <- fmt.Errorf("authorization denied: %s", errMsg)
				return
			}
			fmt.Fprintln(w, "Login complete. You can close this window.")
			codeCh <- q.Get("code")
		}),
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	defer srv.Close()

	authURL := flowCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(out, "Open this URL in your browser to authorize access:\n\n  %s\n\n", authURL)
	fmt.Fprintln(out, "Waiting for authorization...")

	var code string
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	case code = <-codeCh:
	}

	tok, err := flowCfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := saveToken(tokenPath, tok); err != nil {
		return err
	}
	return nil
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token file %s: %w", path, err)
	}
	return &tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := fileutil.SecureWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("save token file: %w", err)
	}
	return nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
