package web

const indexHTML = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>obvix monitor</title>
<style>
body { font-family: system-ui, sans-serif; background: #111; color: #eee; margin: 1.5rem; }
button, select { font-size: 1rem; margin-right: .5rem; }
#feed { max-width: 100%; border: 1px solid #333; margin-top: 1rem; }
#status { color: #a855f7; margin-left: 1rem; }
#log { font-family: monospace; font-size: .85rem; max-height: 12rem; overflow-y: auto; }
</style>
</head>
<body>
<h1>obvix</h1>
<select id="feature">
  <option>object_detection</option>
  <option>face_detection</option>
  <option>face_landmark</option>
  <option>hand_tracking</option>
  <option>pose_detection</option>
  <option>image_classification</option>
  <option>text_detection</option>
</select>
<button id="start">Start</button>
<button id="stop">Stop</button>
<span id="status"></span>
<div><img id="feed" src="/stream" alt="overlay"></div>
<div id="log"></div>
<script>
const status = document.getElementById('status');
const log = document.getElementById('log');
async function call(path) {
  const res = await fetch(path, { method: 'POST' });
  const body = await res.json();
  status.textContent = body.error ? body.error : (body.state || (body.saved ? 'saved' : 'stopped'));
}
document.getElementById('start').onclick = () =>
  call('/api/capture/start?feature=' + document.getElementById('feature').value);
document.getElementById('stop').onclick = () => call('/api/capture/stop');
const events = new EventSource('/api/detections/stream');
events.onmessage = (e) => {
  const u = JSON.parse(e.data);
  status.textContent = u.feature + ' ' + u.fps.toFixed(1) + ' fps';
  for (const d of u.events || []) {
    const line = document.createElement('div');
    line.textContent = new Date(d.timestamp).toLocaleTimeString() + ' ' + d.label + ' ' + d.score + '%';
    log.prepend(line);
  }
};
</script>
</body>
</html>
`
