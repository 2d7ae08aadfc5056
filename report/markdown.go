package report

import (
	"bytes"
	"fmt"
	"os"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// WriteMarkdown exports the run as Markdown: the HTML report is rendered
// (without thumbnails) and converted.
func WriteMarkdown(run *Run, dir, title, path string) error {
	var buf bytes.Buffer
	if err := renderHTML(run, dir, title, false, &buf); err != nil {
		return err
	}

	md, err := mdConverter.ConvertString(buf.String())
	if err != nil {
		return fmt.Errorf("report: convert to markdown: %w", err)
	}
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}
