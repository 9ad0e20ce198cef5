// Package repl implements the interactive terminal front end.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/indexlegal/honoris/internal/apperr"
	"github.com/indexlegal/honoris/internal/model"
)

const rule = "======================================================="

// Analyzer runs one analysis.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*model.Analysis, error)
}

// REPL reads one line at a time and prints an analysis for each.
type REPL struct {
	analyzer   Analyzer
	persistent bool
	scope      string
	provider   string
	now        func() time.Time
	loc        *time.Location
}

// Option configures a REPL.
type Option func(*REPL)

// WithPersistence sets the storage status shown in the banner.
func WithPersistence(active bool) Option {
	return func(r *REPL) { r.persistent = active }
}

// WithScope sets the scope line shown in the banner.
func WithScope(scope string) Option {
	return func(r *REPL) { r.scope = scope }
}

// WithProvider names the model provider in progress messages.
func WithProvider(name string) Option {
	return func(r *REPL) { r.provider = name }
}

// WithClock overrides the time source used for the per-query timestamp.
func WithClock(now func() time.Time) Option {
	return func(r *REPL) { r.now = now }
}

// New creates a REPL over a.
func New(a Analyzer, opts ...Option) *REPL {
	r := &REPL{
		analyzer: a,
		scope:    "Análisis Penal Completo",
		now:      time.Now,
		loc:      costaRica(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func costaRica() *time.Location {
	if loc, err := time.LoadLocation("America/Costa_Rica"); err == nil {
		return loc
	}
	return time.FixedZone("CST", -6*60*60)
}

// Run loops until in is exhausted, the user types exit, or ctx is cancelled.
// Analysis failures are reported on out and never end the loop.
func (r *REPL) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	r.banner(out)

	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		fmt.Fprint(out, "\nIngrese frase o hecho a analizar: ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nSaliendo de Honoris.")
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			line = l
		}

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if strings.EqualFold(text, "exit") {
			fmt.Fprintln(out, "Saliendo de Honoris.")
			return nil
		}

		r.analyze(ctx, out, text)
	}
}

func (r *REPL) banner(out io.Writer) {
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, "       Honoris: CR Legal Expression Analyzer (Terminal)")
	fmt.Fprintf(out, "       SCOPE: %s\n", r.scope)
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, "Escriba 'exit' o presione Ctrl+C para salir.")
	if r.persistent {
		fmt.Fprintln(out, "[STATUS] Integración con almacenamiento: ACTIVA.")
	} else {
		fmt.Fprintln(out, "[STATUS] Integración con almacenamiento: INACTIVA (Modo local).")
	}
}

func (r *REPL) analyze(ctx context.Context, out io.Writer, text string) {
	fmt.Fprintf(out, "[FECHA/HORA BÚSQUEDA]: %s\n", r.now().In(r.loc).Format("02/01/2006, 15:04:05"))
	if r.provider != "" {
		fmt.Fprintf(out, "\nAnalizando con %s...\n\n", r.provider)
	} else {
		fmt.Fprint(out, "\nAnalizando...\n\n")
	}

	a, err := r.analyzer.Analyze(ctx, text)
	if err != nil {
		zap.L().Debug("repl: analysis failed", zap.Error(err))
		fmt.Fprintf(out, "[ERROR] Fallo en el análisis: %s.\n", diagnostic(err))
		return
	}
	Print(out, a)
}

// Print writes a as a labelled table.
func Print(out io.Writer, a *model.Analysis) {
	fmt.Fprintln(out, "--- ANÁLISIS LEGAL ---")
	tw := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "Frase/Hecho:\t%s\n", a.OriginalText)
	fmt.Fprintf(tw, "Categoría Legal:\t%s\n", a.Category)
	fmt.Fprintf(tw, "Normativa:\t%s\n", a.Statute)
	fmt.Fprintf(tw, "Penalidad Estimada:\t%s\n", a.Penalty)
	fmt.Fprintf(tw, "Detalles:\t%s\n", a.Rationale)
	if n := len(a.Evidence); n > 0 {
		fmt.Fprintf(tw, "Evidencia:\t%d documento(s) relacionado(s)\n", n)
	}
	tw.Flush() //nolint:errcheck
	fmt.Fprintln(out, "------------------------")
}

func diagnostic(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindEmptyInput:
		return "texto vacío"
	case apperr.KindClassifierUnavailable:
		return "servicio de clasificación no disponible"
	case apperr.KindContentBlocked:
		return "contenido bloqueado por el filtro de seguridad del modelo"
	case apperr.KindMalformedModelOutput:
		return "respuesta del modelo con formato inválido"
	default:
		return "error inesperado"
	}
}
