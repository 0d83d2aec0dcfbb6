package report

import (
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Subdirectories of a plot area.
const (
	PlotsDir = "plots"
	LogsDir  = "logs"
)

var imageExts = map[string]bool{".png": true, ".svg": true, ".jpg": true, ".pdf": true}

var indexTemplate = template.Must(template.New("index").Parse(`<html>
<head><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
{{- range .Subdirs}}
<p><a href="{{.}}/index.html">{{.}}</a></p>
{{- end}}
{{- range .Plots}}
<div style="display:inline-block; margin:4px">
<a href="{{.Image}}"><img src="{{.Image}}" width="400"></a><br>
{{- if .Log}}<a href="{{.Log}}">{{.Name}}</a>{{else}}{{.Name}}{{end}}
</div>
{{- end}}
</body>
</html>
`))

type plotEntry struct {
	Name  string
	Image string
	Log   string
}

//MakePlotPaths creates the plot and log directories of a plot area.
func MakePlotPaths(dir string) error {
	for _, sub := range []string{PlotsDir, LogsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	return nil
}

//WriteHTML writes dir/index.html showing every figure of dir/plots next to its log and
//linking the index pages of the given subdirectories.
func WriteHTML(dir, title string, subdirs []string) error {
	entries, err := os.ReadDir(filepath.Join(dir, PlotsDir))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "list plots of %s", dir)
	}
	var plots []plotEntry
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || !imageExts[ext] {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), ext)
		p := plotEntry{Name: stem, Image: PlotsDir + "/" + entry.Name()}
		if _, err := os.Stat(filepath.Join(dir, LogsDir, stem+".log")); err == nil {
			p.Log = LogsDir + "/" + stem + ".log"
		}
		plots = append(plots, p)
	}
	sort.Slice(plots, func(i, j int) bool { return plots[i].Name < plots[j].Name })

	fileName := filepath.Join(dir, "index.html")
	f, err := os.Create(fileName)
	if err != nil {
		return errors.Wrapf(err, "create %s", fileName)
	}
	data := struct {
		Title   string
		Subdirs []string
		Plots   []plotEntry
	}{title, subdirs, plots}
	if err := indexTemplate.Execute(f, data); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "render %s", fileName)
	}
	return errors.Wrapf(f.Close(), "close %s", fileName)
}
