package static

import "fmt"

// ClientSnippet returns the script injected into HTML pages. It connects to
// socketPath and reacts to {"kind":"reload"} and {"kind":"cssUpdate"}.
func ClientSnippet(socketPath string) string {
	return fmt.Sprintf(clientTemplate, socketPath)
}

const clientTemplate = `<!-- injected by liveserve -->
<script>
(function() {
	'use strict';
	if (!('WebSocket' in window)) { return; }

	var delay = 500;

	function refreshCSS(path) {
		var links = document.querySelectorAll('link[rel="stylesheet"]');
		for (var i = 0; i < links.length; i++) {
			var url = new URL(links[i].href, location.href);
			if (path && url.origin === location.origin && url.pathname !== path) { continue; }
			url.searchParams.set('_liveserve', Date.now());
			links[i].href = url.toString();
		}
	}

	function connect() {
		var protocol = location.protocol === 'https:' ? 'wss:' : 'ws:';
		var ws = new WebSocket(protocol + '//' + location.host + %q);

		ws.onopen = function() {
			delay = 500;
			console.log('Live reload enabled.');
		};

		ws.onmessage = function(e) {
			var msg;
			try { msg = JSON.parse(e.data); } catch (err) { return; }
			if (msg.kind === 'cssUpdate') {
				refreshCSS(msg.path);
			} else if (msg.kind === 'reload') {
				location.reload();
			}
		};

		ws.onclose = function() {
			setTimeout(connect, delay);
			delay = Math.min(delay * 2, 10000);
		};
	}

	connect();
})();
</script>
`
