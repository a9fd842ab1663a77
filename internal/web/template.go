package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/shutterd/internal/gpio"
	"github.com/sweeney/shutterd/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"travel": func(d time.Duration) string {
		if d <= 0 {
			return "Unknown"
		}
		return fmt.Sprintf("%.1fs", d.Seconds())
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Shutter {{.Config.Name}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
img { float: right; margin-left: 1em; }
</style>
</head>
<body>
<h1>Shutter {{.Config.Name}}</h1>
<img src="/shutter.png" alt="shutter position" width="160" height="240">

<h2>State</h2>
<table>
<tr><th>Position</th><td id="position" class="{{if .Shutter.Position.Known}}on{{else}}unknown{{end}}">{{.Shutter.Position}}</td></tr>
<tr><th>Motor</th><td id="motor">{{.Shutter.Motor}}</td></tr>
<tr><th>Travel time</th><td>{{travel .Shutter.Travel}}</td></tr>
<tr><th>Calibrating</th><td>{{if .Shutter.Calibrating}}yes{{else}}no{{end}}</td></tr>
{{if .LastEvent}}<tr><th>Last event</th><td>{{.LastEvent.Type}} at {{.LastEvent.Timestamp.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>{{end}}
<tr><th>Events</th><td>{{.EventCount}}</td></tr>
</table>

<h2>Lines</h2>
<table>
{{range .Lines}}<tr><th>{{.Name}} ({{.Offset}})</th><td class="{{if .Active}}on{{else}}off{{end}}">{{if .Active}}1{{else}}0{{end}}</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Chip</th><td>{{.Config.Chip}}</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

// lineRow is one GPIO line as shown on the status page.
type lineRow struct {
	Name   string
	Offset int
	Active bool
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Lines  []lineRow
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	for _, line := range gpio.Lines {
		data.Lines = append(data.Lines, lineRow{
			Name:   line.String(),
			Offset: snap.Config.Pins.Offset(line),
			Active: snap.Shutter.Levels[line],
		})
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render index: %v", err)
	}
}
