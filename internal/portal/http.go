package portal

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moneybot/moneybotd/internal/store"
)

// probePaths are the endpoints major operating systems hit to detect a
// captive portal. Redirecting them to the form page makes the OS pop its
// sign-in prompt.
var probePaths = []string{
	"/generate_204",              // Android
	"/gen_204",                   // Android
	"/hotspot-detect.html",       // Apple
	"/library/test/success.html", // Apple
	"/success.txt",               // Firefox
	"/canonical.html",            // Firefox
	"/ncsi.txt",                  // Windows
	"/connecttest.txt",           // Windows
	"/redirect",                  // Windows
}

const formPage = `<!DOCTYPE html>
<html>
<head><meta name="viewport" content="width=device-width, initial-scale=1"><title>MoneyBot Setup</title></head>
<body style="font-family:sans-serif;max-width:26em;margin:2em auto">
<h1>MoneyBot WiFi Setup</h1>
<p>Enter the network this MoneyBot should join.</p>
<form method="POST" action="/save">
<p><label>Network name<br><input name="ssid" required></label></p>
<p><label>Password<br><input name="pass" type="password"></label></p>
<p><button type="submit">Save &amp; Restart</button></p>
</form>
</body>
</html>`

const savedPage = `<!DOCTYPE html>
<html>
<head><meta name="viewport" content="width=device-width, initial-scale=1"><title>MoneyBot Setup</title></head>
<body style="font-family:sans-serif;max-width:26em;margin:2em auto">
<h1>Saved</h1>
<p>Credentials stored. The MoneyBot is restarting and will join your network.</p>
</body>
</html>`

// CredentialSaver is the slice of the store the portal needs.
type CredentialSaver interface {
	SaveCredentials(c store.Credentials) error
}

// HTTPServer serves the credential form on the provisioning address. After a
// successful save it schedules a restart request, delayed long enough for
// the response to flush to the client.
type HTTPServer struct {
	saver        CredentialSaver
	restart      func()
	restartDelay time.Duration
	srv          *http.Server
	ln           net.Listener
	log          *logrus.Entry
}

func NewHTTPServer(listen string, saver CredentialSaver, restartDelay time.Duration, restart func(), logger *logrus.Logger) (*HTTPServer, error) {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("bind http listener: %w", err)
	}
	h := &HTTPServer{
		saver:        saver,
		restart:      restart,
		restartDelay: restartDelay,
		ln:           ln,
		log:          logger.WithField("component", "portal-http"),
	}
	h.srv = &http.Server{Handler: h.Routes()}
	return h, nil
}

// Routes builds the portal mux: form page, save endpoint, OS probe redirects.
func (h *HTTPServer) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handleRoot)
	mux.HandleFunc("/save", h.handleSave)
	for _, p := range probePaths {
		mux.HandleFunc(p, h.handleProbe)
	}
	return mux
}

func (h *HTTPServer) Start() {
	go func() {
		if err := h.srv.Serve(h.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.log.WithError(err).Warn("http server exited")
		}
	}()
	h.log.WithField("addr", h.ln.Addr().String()).Info("portal http started")
}

func (h *HTTPServer) Stop() {
	h.srv.Close()
	h.log.Info("portal http stopped")
}

// Addr reports the bound listen address.
func (h *HTTPServer) Addr() net.Addr {
	return h.ln.Addr()
}

func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		// Unknown paths also land on the form; a captive client may
		// request anything.
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, formPage)
}

func (h *HTTPServer) handleProbe(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *HTTPServer) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		http.Error(w, "read failed", http.StatusBadRequest)
		return
	}

	fields, err := parseForm(string(body))
	if err != nil {
		h.log.WithError(err).Warn("rejecting undecodable form")
		http.Error(w, "bad form encoding", http.StatusBadRequest)
		return
	}
	ssid := fields["ssid"]
	if ssid == "" {
		http.Error(w, "ssid required", http.StatusBadRequest)
		return
	}

	creds := store.Credentials{SSID: ssid, Passphrase: fields["pass"]}
	if err := h.saver.SaveCredentials(creds); err != nil {
		h.log.WithError(err).Error("saving credentials failed")
		http.Error(w, "store failed", http.StatusInternalServerError)
		return
	}
	h.log.WithField("ssid", ssid).Info("credentials saved, restart scheduled")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, savedPage)

	// Let the response flush before the process goes down.
	time.AfterFunc(h.restartDelay, h.restart)
}

// parseForm splits a urlencoded body and runs each value through the
// two-pass decoder.
func parseForm(body string) (map[string]string, error) {
	fields := make(map[string]string)
	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		decoded, err := DecodeFormValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		fields[k] = decoded
	}
	return fields, nil
}
