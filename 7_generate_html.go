package jawbone

import (
	"bytes"
	_ "embed"
	"html/template"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

//go:embed templates/report.html
var htmlTemplate string

//go:embed templates/styles.css
var cssStyles string

var GenerateHTMLCmd = &cobra.Command{
	Use:   "generate-html",
	Short: "Generate an HTML version of the comparison report",
	Run: func(cmd *cobra.Command, args []string) {
		reportData, err := os.ReadFile(filepath.Join(Config.DataDir, "report.md"))
		if err != nil {
			log.Printf("Failed to read report.md: %v", err)
			return
		}

		htmlContent, err := renderHTMLReport(string(reportData))
		if err != nil {
			log.Printf("Failed to render HTML report: %v", err)
			return
		}

		path := filepath.Join(Config.DataDir, "report.html")
		if err := os.WriteFile(path, []byte(htmlContent), 0644); err != nil {
			log.Printf("Failed to write HTML file: %v", err)
			return
		}

		log.Printf("HTML report generated: %s", path)
	},
}

// renderHTMLReport converts the markdown report into a standalone HTML
// document with embedded styles.
func renderHTMLReport(markdownContent string) (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Table,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			gmhtml.WithXHTML(),
		),
	)

	var buf bytes.Buffer
	if err := md.Convert([]byte(markdownContent), &buf); err != nil {
		return "", err
	}

	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return "", err
	}

	data := struct {
		Title string
		Date  string
		Body  template.HTML
		CSS   template.CSS
	}{
		Title: "Narrative Thread Clustering",
		Date:  time.Now().Format("2 January 2006"),
		Body:  template.HTML(buf.String()),
		CSS:   template.CSS(cssStyles),
	}

	var result bytes.Buffer
	if err := tmpl.Execute(&result, data); err != nil {
		return "", err
	}

	return result.String(), nil
}
