// Command smoke drives one lead form submission through the real pipeline
// against in-process fakes of the captcha, LLM and rendering services.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	repo "assessment-generator/internal/adapter/repository"
	"assessment-generator/internal/config"
	"assessment-generator/internal/model"
	"assessment-generator/internal/usecase"
	"assessment-generator/pkg/ai"
	"assessment-generator/pkg/captcha"
	"assessment-generator/pkg/infrastructure"
	"assessment-generator/pkg/logger"
	"assessment-generator/pkg/mailer"
	"assessment-generator/pkg/pdfservice"
)

const mockAssessment = `Here is the assessment:
` + "```json" + `
{
  "company": "Acme",
  "company_size": "11-50",
  "it_challenge": "Backups",
  "assessmentSections": [
    {"title": "Overview", "content": "Acme runs a small Microsoft 365 estate with ad hoc backups."},
    {"title": "Challenge Analysis", "content": "Backups are manual and never restored in testing."},
    {"title": "Recommendations", "content": [
      {"step": 1, "action": "Adopt a managed backup service for M365."},
      {"step": 2, "action": "Schedule quarterly restore drills."}
    ]},
    {"title": "Next Steps", "content": "Book a call to scope the backup rollout."}
  ]
}
` + "```"

// serve starts handler on a random loopback port and returns its base URL.
func serve(handler http.Handler) (*http.Server, string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, "", err
	}
	srv := &http.Server{Handler: handler}
	go func() { _ = srv.Serve(ln) }()
	return srv, "http://" + ln.Addr().String(), nil
}

func mockCaptcha() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/siteverify", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"success": %t}`, r.Form.Get("response") == "smoke-captcha")
	})
	return mux
}

func mockLLM() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		if input, _ := req["input"].(string); !strings.Contains(input, "Acme") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b, _ := json.Marshal(map[string]interface{}{"agent": "mock", "output": mockAssessment})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
	})
	return mux
}

// mockRenderer reports "pending" for the first two polls.
func mockRenderer(baseURL *string) http.Handler {
	var polls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/documents", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"document":{"id":"doc-smoke","status":"pending"}}`)
	})
	mux.HandleFunc("/documents/doc-smoke", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&polls, 1) < 3 {
			_, _ = io.WriteString(w, `{"document":{"id":"doc-smoke","status":"generating"}}`)
			return
		}
		fmt.Fprintf(w, `{"document":{"id":"doc-smoke","status":"success","download_url":"%s/files/doc-smoke.pdf"}}`, *baseURL)
	})
	return mux
}

func main() {
	log, err := logger.New("dev", "debug")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	captchaSrv, captchaURL, err := serve(mockCaptcha())
	if err != nil {
		log.Fatal("mock captcha failed", "error", err)
	}
	defer captchaSrv.Shutdown(context.Background())

	llmSrv, llmURL, err := serve(mockLLM())
	if err != nil {
		log.Fatal("mock llm failed", "error", err)
	}
	defer llmSrv.Shutdown(context.Background())

	var renderURL string
	renderSrv, renderURL, err := serve(mockRenderer(&renderURL))
	if err != nil {
		log.Fatal("mock renderer failed", "error", err)
	}
	defer renderSrv.Shutdown(context.Background())

	dir, err := os.MkdirTemp("", "assessment-smoke-")
	if err != nil {
		log.Fatal("temp dir failed", "error", err)
	}
	defer os.RemoveAll(dir)

	db, err := infrastructure.OpenBadger(dir)
	if err != nil {
		log.Fatal("badger open failed", "error", err)
	}
	defer db.Close()
	store := repo.NewBadgerStore(db)

	const token = "smoke-token"
	if err := store.UpsertGenerated(ctx, "jane@acme.io", token, "Newsletter", time.Now()); err != nil {
		log.Fatal("seed subscriber failed", "error", err)
	}

	cfg := config.NewDefaultConfig()
	cfg.LLM.Provider = "service"
	cfg.LLM.ServiceURL = llmURL
	cfg.Renderer.ServiceURL = renderURL
	cfg.Renderer.TemplateID = "tmpl-smoke"
	cfg.Renderer.PollInitial = 100 * time.Millisecond
	cfg.Renderer.PollMaxInterval = 200 * time.Millisecond
	cfg.Renderer.Timeout = 10 * time.Second
	cfg.Captcha.VerifyURL = captchaURL + "/siteverify"
	cfg.SMTP.From = "assessments@example.com"

	completer, err := ai.NewCompleter(ctx, cfg.LLM, log)
	if err != nil {
		log.Fatal("llm init failed", "error", err)
	}

	var sent int
	notifier := mailer.New(cfg.SMTP, "https://calendly.example/smoke", log).
		WithSender(func(_ context.Context, from string, to []string, msg []byte) error {
			sent++
			log.Info("email captured", "from", from, "recipients", len(to), "bytes", len(msg))
			return nil
		})

	processor := usecase.NewProcessor(
		captcha.NewClient(nil, cfg.Captcha),
		store,
		ai.NewClient(completer, cfg.LLM, log),
		pdfservice.NewClient(nil, cfg.Renderer, log),
		notifier,
		usecase.Options{TemplateID: cfg.Renderer.TemplateID, LeadMagnet: cfg.LLM.LeadMagnet},
		log,
	)

	consent := true
	req := usecase.Request{
		Form: model.FormSubmission{
			Name:        "Jane Doe",
			Email:       "jane@acme.io",
			Company:     "Acme",
			CompanySize: "11-50",
			ITChallenge: "Backups",
			ITSetup:     "Microsoft 365",
			Consent:     &consent,
		},
		VerificationToken: token,
		RecaptchaToken:    "smoke-captcha",
		RemoteIP:          "127.0.0.1",
	}

	res, err := processor.Process(ctx, req)
	if err != nil {
		log.Fatal("first submission failed", "error", err)
	}
	fmt.Printf("first submission: job=%s url=%s emails=%d\n", res.JobID, res.DownloadURL, sent)

	res, err = processor.Process(ctx, req)
	if err != nil {
		log.Fatal("second submission failed", "error", err)
	}
	fmt.Printf("second submission: already_generated=%t emails=%d\n", res.AlreadyGenerated, sent)
}
