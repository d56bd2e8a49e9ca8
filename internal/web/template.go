package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/solenoid-bank/internal/status"
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
	"hex": func(b uint8) string {
		return fmt.Sprintf("0x%02x", b)
	},
	"bits": func(b uint8) string {
		return fmt.Sprintf("%08b", b)
	},
	"pct": func(f float64) string {
		return fmt.Sprintf("%.0f%%", f*100)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Solenoid Bank</title>
<style>
body { font-family: monospace; max-width: 700px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.estop { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Solenoid Bank</h1>

<h2>Safety</h2>
<table>
<tr><th>Emergency Stop</th><td class="{{if .EStop}}estop{{else}}off{{end}}">{{if .EStop}}ENGAGED{{else}}clear{{end}}</td></tr>
<tr><th>Interlocks</th><td>{{if .Config.Safety}}enabled{{else}}disabled{{end}}</td></tr>
<tr><th>Active channels</th><td>{{.ActiveCount}} / {{len .Channels}}</td></tr>
</table>

<h2>Boards</h2>
<table>
<tr><th>Address</th><td>Mask</td></tr>
{{range .Boards}}<tr><th>{{hex .Address}}</th><td>{{bits .Mask}}</td></tr>
{{end}}</table>

<h2>Channels</h2>
<table>
<tr><th>Channel</th><td>State</td><td>Activations</td><td>Total on</td></tr>
{{range .Channels}}<tr><th>{{.Board}}/{{.Local}}</th><td class="{{if .On}}on{{else}}off{{end}}">{{if .On}}ON{{else}}OFF{{end}}</td><td>{{.Activations}}</td><td>{{.TotalOnMs}}ms</td></tr>
{{end}}</table>

<h2>Protection Trips</h2>
<table>
<tr><th>Max on-time</th><td>{{.Trips.Timeouts}}</td></tr>
<tr><th>Cooldown</th><td>{{.Trips.Cooldowns}}</td></tr>
<tr><th>Duty cycle</th><td>{{.Trips.DutyCycle}}</td></tr>
<tr><th>Communication</th><td>{{.Trips.Comm}}</td></tr>
<tr><th>Other</th><td>{{.Trips.Other}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Transport</th><td>{{.Config.Transport}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Update tick</th><td>{{.Config.UpdateMs}}ms</td></tr>
<tr><th>Max on-time</th><td>{{if eq .Config.MaxOnTimeMs 0}}disabled{{else}}{{.Config.MaxOnTimeMs}}ms{{end}}</td></tr>
<tr><th>Min off-time</th><td>{{.Config.MinOffTimeMs}}ms</td></tr>
<tr><th>Max duty cycle</th><td>{{pct .Config.MaxDutyCycle}}</td></tr>
<tr><th>Duty window</th><td>{{.Config.WindowMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/api/status">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() and ActiveCount() methods but the template
	// wants plain fields.
	data := struct {
		status.Snapshot
		Uptime      time.Duration
		ActiveCount int
	}{
		Snapshot:    snap,
		Uptime:      snap.Uptime(),
		ActiveCount: snap.ActiveCount(),
	}
	indexTmpl.Execute(w, data)
}
