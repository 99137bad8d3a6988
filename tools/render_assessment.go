package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"assessment-generator/internal/domain"
	"assessment-generator/pkg/infrastructure"
)

// Renders a stored render payload to HTML, and optionally to PDF, for
// checking template changes without running the pipeline.
func main() {
	in := flag.String("in", "assessment_payload.json", "render payload JSON")
	out := flag.String("out", "assessment_preview.html", "output HTML file")
	pdf := flag.String("pdf", "", "also write a PDF to this path")
	chrome := flag.String("chrome", "", "chrome executable, empty for the default lookup")
	flag.Parse()

	b, err := os.ReadFile(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read payload: %v\n", err)
		os.Exit(2)
	}
	var req domain.RenderRequest
	if err := json.Unmarshal(b, &req); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal: %v\n", err)
		os.Exit(2)
	}

	html, err := infrastructure.RenderAssessmentHTML(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "render html: %v\n", err)
		os.Exit(2)
	}
	if err := os.WriteFile(*out, []byte(html), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write html: %v\n", err)
		os.Exit(2)
	}
	fmt.Printf("wrote %s\n", *out)

	if *pdf == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	data, err := infrastructure.NewChromedpRenderer(*chrome).RenderHTMLToPDF(ctx, html)
	if err != nil {
		fmt.Fprintf(os.Stderr, "render pdf: %v\n", err)
		os.Exit(2)
	}
	if err := os.WriteFile(*pdf, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write pdf: %v\n", err)
		os.Exit(2)
	}
	fmt.Printf("wrote %s\n", *pdf)
}
