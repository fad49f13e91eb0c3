package httpapi

import (
	"fmt"
	"net/http"
)

const dashboardHTML = `<!doctype html>
<html lang="zh-Hant">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>BossWatch 重生看板</title>
  <style>
    :root {
      --ink: #1b2430;
      --paper: #f3f5f8;
      --card: #ffffff;
      --line: #d8dee8;
      --muted: #6b7684;
      --waiting: #8a94a3;
      --possible: #1f9d53;
      --confirmed: #c2483f;
    }

    * { box-sizing: border-box; }

    body {
      margin: 0;
      font-family: "Segoe UI", "Noto Sans TC", sans-serif;
      color: var(--ink);
      background: var(--paper);
      min-height: 100vh;
      padding: 24px;
    }

    .wrap { max-width: 980px; margin: 0 auto; }

    header {
      display: flex;
      justify-content: space-between;
      align-items: baseline;
      margin-bottom: 16px;
    }

    h1 { font-size: 22px; margin: 0; }

    .conn { font-size: 13px; color: var(--muted); }
    .conn.ok::before { content: "●"; color: var(--possible); margin-right: 6px; }
    .conn.down::before { content: "●"; color: var(--confirmed); margin-right: 6px; }

    table {
      width: 100%;
      border-collapse: collapse;
      background: var(--card);
      border: 1px solid var(--line);
      border-radius: 10px;
      overflow: hidden;
    }

    th, td {
      padding: 10px 14px;
      text-align: left;
      border-bottom: 1px solid var(--line);
      font-size: 14px;
    }

    th { background: #eef1f6; color: var(--muted); font-weight: 600; }
    tr:last-child td { border-bottom: none; }

    .status { font-weight: 700; }
    .status.waiting { color: var(--waiting); }
    .status.possible { color: var(--possible); }
    .status.confirmed { color: var(--confirmed); }

    .empty {
      padding: 36px;
      text-align: center;
      color: var(--muted);
      background: var(--card);
      border: 1px dashed var(--line);
      border-radius: 10px;
    }
  </style>
</head>
<body>
  <div class="wrap">
    <header>
      <h1>BOSS 重生看板</h1>
      <span id="conn" class="conn down">連線中…</span>
    </header>
    <div id="content"><div class="empty">載入中…</div></div>
  </div>
  <script>
    const statusText = { waiting: "等待中", possible: "可能重生", confirmed: "已重生" };

    function fmtRemaining(ms) {
      const total = Math.abs(Math.floor(ms / 1000));
      const h = Math.floor(total / 3600);
      const m = Math.floor((total % 3600) / 60);
      const s = total % 60;
      const text = (h > 0 ? h + ":" : "") +
        String(m).padStart(2, "0") + ":" + String(s).padStart(2, "0");
      return ms < 0 ? "+" + text : text;
    }

    function fmtClock(iso) {
      const d = new Date(iso);
      return (d.getMonth() + 1) + "/" + d.getDate() + " " +
        String(d.getHours()).padStart(2, "0") + ":" + String(d.getMinutes()).padStart(2, "0");
    }

    function render(records) {
      const content = document.getElementById("content");
      if (!records || records.length === 0) {
        content.innerHTML = '<div class="empty">目前沒有追蹤中的 BOSS</div>';
        return;
      }
      let rows = "";
      for (const r of records) {
        rows += "<tr>" +
          "<td>" + r.bossName + "</td>" +
          "<td>" + r.channel + "</td>" +
          "<td>" + (r.map || "-") + "</td>" +
          "<td>" + fmtClock(r.respawnMin) + " ~ " + fmtClock(r.respawnMax) + "</td>" +
          "<td>" + fmtRemaining(r.remainingMs) + "</td>" +
          '<td class="status ' + r.status + '">' + (statusText[r.status] || r.status) + "</td>" +
          "</tr>";
      }
      content.innerHTML =
        "<table><thead><tr>" +
        "<th>BOSS</th><th>頻道</th><th>地圖</th><th>重生視窗</th><th>倒數</th><th>狀態</th>" +
        "</tr></thead><tbody>" + rows + "</tbody></table>";
    }

    function setConn(ok) {
      const el = document.getElementById("conn");
      el.className = "conn " + (ok ? "ok" : "down");
      el.textContent = ok ? "即時連線" : "連線中斷，重試中…";
    }

    function connect() {
      const proto = location.protocol === "https:" ? "wss:" : "ws:";
      const ws = new WebSocket(proto + "//" + location.host + "/v1/live");
      ws.onopen = () => setConn(true);
      ws.onmessage = (ev) => render(JSON.parse(ev.data));
      ws.onclose = () => { setConn(false); setTimeout(connect, 2000); };
      ws.onerror = () => ws.close();
    }
    connect();
  </script>
</body>
</html>`

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, dashboardHTML)
}
