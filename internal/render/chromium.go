package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/yourorg/table-export/internal/types"
)

const tableTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<style>
  @page { size: A4 {{if .Landscape}}landscape{{else}}portrait{{end}}; margin: 10mm; }
  body { font-family: Helvetica, Arial, sans-serif; font-size: 8pt; margin: 0; }
  h1 { font-size: 12pt; margin: 0 0 4mm 0; }
  table { width: 100%; border-collapse: collapse; table-layout: fixed; }
  thead { display: table-header-group; }
  th { background: #6366F1; color: #fff; text-align: left; }
  th, td { border: 1px solid #d2d2dc; padding: 1mm; overflow: hidden; text-overflow: ellipsis; white-space: nowrap; }
  tr:nth-child(even) td { background: #f5f5fa; }
</style>
</head>
<body>
{{if .Title}}<h1>{{.Title}}</h1>{{end}}
<table>
<thead><tr>{{range .Columns}}<th>{{.Label}}</th>{{end}}</tr></thead>
<tbody>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
</body>
</html>`

var tableTmpl = template.Must(template.New("table").Parse(tableTemplate))

// HTML renders the chunk as a standalone HTML table document.
func HTML(title string, rows types.Chunk, cols []types.ColumnSpec) (string, error) {
	cells := make([][]string, len(rows))
	for i, row := range rows {
		line := make([]string, len(cols))
		for j, c := range cols {
			line[j] = row[c.Key]
		}
		cells[i] = line
	}
	var buf bytes.Buffer
	err := tableTmpl.Execute(&buf, struct {
		Title     string
		Landscape bool
		Columns   []types.ColumnSpec
		Rows      [][]string
	}{title, len(cols) > landscapeAbove, cols, cells})
	if err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

// Chromium prints an HTML table through headless Chromium. The browser is
// started on first use and shared by subsequent renders until Close.
type Chromium struct {
	Title   string
	Timeout time.Duration // per page, default 30s

	mu      sync.Mutex
	launch  *launcher.Launcher
	browser *rod.Browser
}

func (c *Chromium) connect() (*rod.Browser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browser != nil {
		return c.browser, nil
	}
	launch := launcher.New().
		Headless(true).
		NoSandbox(true)
	if path, ok := launcher.LookPath(); ok {
		launch = launch.Bin(path)
	}
	browserURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	browser := rod.New().ControlURL(browserURL)
	if err := browser.Connect(); err != nil {
		launch.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	c.launch, c.browser = launch, browser
	return browser, nil
}

func (c *Chromium) Render(ctx context.Context, rows types.Chunk, cols []types.ColumnSpec) ([]byte, error) {
	doc, err := HTML(c.Title, rows, cols)
	if err != nil {
		return nil, err
	}
	browser, err := c.connect()
	if err != nil {
		return nil, err
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	page, err := browser.Context(ctx).Timeout(timeout).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer func() {
		_ = page.Close()
	}()

	if err := page.SetDocumentContent(doc); err != nil {
		return nil, fmt.Errorf("set document content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}
	reader, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground:   true,
		PreferCSSPageSize: true,
	})
	if err != nil {
		return nil, fmt.Errorf("export pdf: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf bytes: %w", err)
	}
	return data, nil
}

// Close shuts the browser down. The renderer may be reused afterwards.
func (c *Chromium) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browser == nil {
		return nil
	}
	err := c.browser.Close()
	c.launch.Cleanup()
	c.browser, c.launch = nil, nil
	return err
}
