package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/Messijah/PedagogiskDialog/internal/models"
)

const notDocumented = "Ej dokumenterat"

// RenderExport builds the downloadable action-plan document: the header
// fields, problem, chosen perspectives, conclusions and the plan itself,
// followed by the output of every stage.
func RenderExport(s *models.Session, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# HANDLINGSPLAN - %s\n\n", s.Name)
	fmt.Fprintf(&b, "Rektor: %s\n", s.FacilitatorName)
	if s.Participants != "" {
		fmt.Fprintf(&b, "Personalgrupp: %s\n", s.Participants)
	}
	fmt.Fprintf(&b, "Datum: %s\n", now.Format("2006-01-02"))
	fmt.Fprintf(&b, "Status: %s\n", exportStatus(s))

	section(&b, "PROBLEMFORMULERING", s.Problem())
	section(&b, "VALDA PERSPEKTIV", s.Stage(models.StagePerspectives).Notes)
	section(&b, "SLUTSATSER", s.Stage(models.StageDeepening).Notes)
	section(&b, "HANDLINGSPLAN", s.Stage(models.StageActionPlan).AIOutput)

	b.WriteString("\n---\n")
	for n := 1; n <= models.StageCount; n++ {
		st := s.Stage(n)
		if st.AIOutput == "" {
			continue
		}
		marker := "utkast"
		if st.Approved {
			marker = "godkänt"
		}
		fmt.Fprintf(&b, "\n## Steg %d: %s (%s)\n\n%s\n", n, models.StageTitle(n), marker, st.AIOutput)
	}

	return b.String()
}

// ExportFileName returns handlingsplan_<name>_<yyyymmdd>.md.
func ExportFileName(s *models.Session, now time.Time) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ' ':
			return '_'
		case '/', '\\', '"', ':', '*', '?', '<', '>', '|':
			return -1
		}
		return r
	}, s.Name)
	return fmt.Sprintf("handlingsplan_%s_%s.md", name, now.Format("20060102"))
}

func section(b *strings.Builder, title, body string) {
	if strings.TrimSpace(body) == "" {
		body = notDocumented
	}
	fmt.Fprintf(b, "\n## %s\n\n%s\n", title, strings.TrimSpace(body))
}

func exportStatus(s *models.Session) string {
	if s.Completed {
		return "slutförd"
	}
	return fmt.Sprintf("pågår, steg %d av %d", s.CurrentStage, models.StageCount)
}
