package httpserver

const indexHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>thermo</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; max-width: 48rem; }
code { background: #f3f3f3; padding: 0 .25rem; }
td { padding: .2rem .8rem .2rem 0; vertical-align: top; }
</style>
</head>
<body>
<h1>thermo</h1>
<p>Temperature readings over time windows. Windows take <code>startTime</code>,
<code>endTime</code>, <code>type</code> (<code>TIMESTAMP</code> or <code>FORMATTED</code>)
and <code>format</code>; both bounds default to today.</p>
<table>
<tr><td><code>GET|POST /api/collection</code></td><td>record <code>value</code>, <code>position</code>, <code>recordedAt</code></td></tr>
<tr><td><code>GET /api/list</code></td><td>readings in the window (<code>page_size</code>, <code>page_token</code>)</td></tr>
<tr><td><code>GET /api/latest</code></td><td>most recent reading</td></tr>
<tr><td><code>GET /api/average</code></td><td>mean value in the window</td></tr>
<tr><td><code>GET /api/max</code>, <code>GET /api/min</code></td><td>extreme value and every reading that hit it</td></tr>
<tr><td><code>GET /api/this-week-average</code></td><td>mean since Monday 00:00</td></tr>
<tr><td><code>GET /metrics</code></td><td>Prometheus metrics</td></tr>
</table>
<p>Latest: <span id="latest">loading...</span></p>
<script>
fetch('/api/latest').then(r => r.json()).then(b => {
  document.getElementById('latest').textContent = b.status === 0
    ? b.data.value + ' at ' + b.data.recordedAt + ' (' + b.data.position + ')'
    : b.error.message;
});
</script>
</body>
</html>
`
