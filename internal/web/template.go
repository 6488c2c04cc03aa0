package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/brew-monitor/internal/logic"
	"github.com/sweeney/brew-monitor/internal/status"
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
	"f1": func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"f2": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"pct": func(v float64) string { return fmt.Sprintf("%.0f", v*100) },
	"phaseClass": func(p logic.Phase) string {
		switch p {
		case logic.PhaseFinishing:
			return "finishing"
		case logic.PhaseCompleted:
			return "completed"
		case logic.PhaseIdle, "":
			return "idle"
		}
		return "running"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Brew Monitor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.idle { color: #888; }
.running { color: #06c; font-weight: bold; }
.finishing { color: orange; font-weight: bold; }
.completed { color: green; font-weight: bold; }
.stop { color: red; font-weight: bold; }
.warn { color: #b60; }
.connected { color: green; }
.disconnected { color: red; }
.bar { background: #eee; height: 10px; }
.bar div { background: #06c; height: 10px; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
form { display: inline; }
</style>
</head>
<body>
<h1>Brew Monitor<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Shot {{if .Shot}}#<span id="shot">{{.Shot}}</span>{{end}}</h2>
<table>
{{with .Brew}}
<tr><th>Phase</th><td id="phase" class="{{phaseClass .Phase}}">{{.Phase}}</td></tr>
<tr><th>Timer</th><td id="timer">{{f1 .Sample.Elapsed}}s</td></tr>
<tr><th>Weight</th><td id="weight">{{f1 .Sample.Weight}}g / {{f1 .Config.TargetWeight}}g</td></tr>
<tr><th>Flow</th><td id="flow">{{f2 .AverageFlow}} g/s (target {{f2 .Config.TargetFlowRate}})</td></tr>
<tr><th>Ratio</th><td id="ratio">1:{{f2 .Ratio}} (target 1:{{f2 .Config.BrewRatio}})</td></tr>
<tr><th>Progress</th><td><div class="bar"><div id="progress" style="width: {{pct .Progress}}%"></div></div></td></tr>
<tr><th>Auto-stop</th><td id="auto-stop" class="{{if .AutoStop}}stop{{end}}">{{if .AutoStop}}STOP NOW{{else}}no{{end}}</td></tr>
<tr><th>Warnings</th><td id="warnings" class="warn">{{range $i, $w := .Warnings}}{{if $i}}; {{end}}{{$w}}{{else}}none{{end}}</td></tr>
{{else}}
<tr><th>Phase</th><td id="phase" class="idle">waiting for first shot</td></tr>
{{end}}
<tr><th>Paddle</th><td id="paddle">{{if .Paddle.Closed}}closed{{else}}open{{end}}{{if .Paddle.LastError}} <span class="warn">({{.Paddle.LastError}})</span>{{end}}</td></tr>
</table>

<h2>Paddle Controller</h2>
<table>
<tr><th>Source</th><td>{{.Paddle.Source}}</td></tr>
{{if .Paddle.Mode}}<tr><th>Mode</th><td>{{.Paddle.Mode}}</td></tr>
<tr><th>Override</th><td>{{.Paddle.Override}}</td></tr>
<tr><th>Main relay</th><td>{{.Paddle.RelayMain}}</td></tr>{{end}}
<tr><th>Auto-stop actuation</th><td>{{if .Config.AutoStopActuate}}on{{else}}off{{end}}</td></tr>
<tr><th>Override</th><td>
<form method="post" action="/override"><input type="hidden" name="set" value="1"><button>Force on</button></form>
<form method="post" action="/override"><input type="hidden" name="set" value="0"><button>Force off</button></form>
<form method="post" action="/override"><input type="hidden" name="set" value="off"><button>Release</button></form>
</td></tr>
<tr><th>Set mode</th><td>
<form method="post" action="/mode"><input type="hidden" name="mode" value="AUTO"><button>Auto</button></form>
<form method="post" action="/mode"><input type="hidden" name="mode" value="MANUAL"><button>Manual</button></form>
</td></tr>
</table>

{{if or .Machine.PressureBar .Machine.BoilerTempC .Machine.GroupTempC}}<h2>Machine</h2>
<table>
<tr><th>Pressure</th><td id="pressure">{{f1 .Machine.PressureBar}} bar</td></tr>
<tr><th>Group</th><td>{{f1 .Machine.GroupTempC}} °C</td></tr>
<tr><th>Coffee boiler</th><td>{{f1 .Machine.BoilerTempC}} °C</td></tr>
</table>
{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td id="mqtt" class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Shot Counts</h2>
<table>
<tr><th>Shots</th><td id="count-shots">{{.Counts.Shots}}</td></tr>
<tr><th>Completed</th><td>{{.Counts.Completed}}</td></tr>
<tr><th>Auto-stops</th><td>{{.Counts.AutoStops}}</td></tr>
{{range .WarningCounts}}<tr><th>{{.Kind}}</th><td>{{.Count}}</td></tr>
{{end}}</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Refresh</th><td>{{.Config.RefreshMs}}ms</td></tr>
<tr><th>Smoothing</th><td>{{.Config.SmoothingWindow}} samples</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  function setDot(cls, title) { dot.className = "live-dot " + cls; dot.title = title; }
  function set(id, text) { var el = document.getElementById(id); if (el) el.textContent = text; }

  function connect() {
    var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() { setDot("err", "offline"); setTimeout(connect, 2000); };
    ws.onmessage = function(ev) {
      var msg;
      try { msg = JSON.parse(ev.data); } catch (e) { return; }
      var b = msg.brew;
      if (b && !document.getElementById("timer")) { location.reload(); return; }
      set("shot", msg.shot);
      set("paddle", msg.paddle_closed ? "closed" : "open");
      set("mqtt", msg.mqtt_connected ? "connected" : "disconnected");
      set("count-shots", msg.shot_counts.shots);
      if (!b) return;
      set("phase", b.phase);
      set("timer", b.elapsed_s.toFixed(1) + "s");
      set("weight", b.weight_g.toFixed(1) + "g");
      set("flow", b.avg_flow_g_s.toFixed(2) + " g/s");
      set("ratio", "1:" + b.ratio.toFixed(2) + " (target 1:" + b.target_ratio.toFixed(2) + ")");
      set("auto-stop", b.auto_stop ? "STOP NOW" : "no");
      set("warnings", b.warnings.length ? b.warnings.map(function(w) { return w.message; }).join("; ") : "none");
      document.getElementById("progress").style.width = Math.round(b.progress * 100) + "%";
    };
  }
  connect();
})();
</script>
</body>
</html>
`

type warningCount struct {
	Kind  logic.WarningKind
	Count int
}

func renderHTML(w io.Writer, snap status.Snapshot) error {
	counts := make([]warningCount, 0, len(logic.WarningKinds))
	for _, k := range logic.WarningKinds {
		counts = append(counts, warningCount{Kind: k, Count: snap.Counts.Warnings[k]})
	}

	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime        time.Duration
		WarningCounts []warningCount
	}{
		Snapshot:      snap,
		Uptime:        snap.Uptime(),
		WarningCounts: counts,
	}
	return indexTmpl.Execute(w, data)
}
