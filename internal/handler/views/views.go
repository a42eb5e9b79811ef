// Package views renders the server-side HTML pages.
package views

//go:generate templ generate

import (
	"context"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	appI18n "github.com/pavelanni/tutor/internal/i18n"
	"github.com/pavelanni/tutor/internal/model"
)

func modeLabelID(m model.Mode) string {
	switch m {
	case model.ModeTeacher:
		return "ModeTeacher"
	case model.ModeExaminer:
		return "ModeExaminer"
	case model.ModeOral:
		return "ModeOral"
	case model.ModePractice:
		return "ModePractice"
	case model.ModeRevision:
		return "ModeRevision"
	default:
		return "ModeProgress"
	}
}

func progressHeading(ctx context.Context, student model.Student) string {
	if !student.Known() {
		return appI18n.T(ctx, "ProgressTitle")
	}
	return appI18n.Td(ctx, "ProgressFor", map[string]any{"Name": student.Name, "Class": student.Class})
}

// bandKey is the band without spaces, as used in message ids.
func bandKey(b model.Band) string {
	return strings.ReplaceAll(string(b), " ", "")
}

func trendLabel(ctx context.Context, t model.Trend) string {
	if t == model.TrendNone {
		return ""
	}
	return appI18n.T(ctx, "Trend_"+string(t))
}

func percent(v int) string {
	return strconv.Itoa(v) + "%"
}

func percentOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return percent(*v)
}

func scoreList(scores []int) string {
	parts := make([]string, len(scores))
	for i, v := range scores {
		parts[i] = percent(v)
	}
	return strings.Join(parts, ", ")
}

func pageStyle() templ.Component {
	return templ.Raw("<style>" + baseCSS + "</style>")
}

func chatScript() templ.Component {
	return templ.Raw("<script>" + chatJS + "</script>")
}

const baseCSS = `body{font-family:system-ui,sans-serif;margin:0;background:#f7f7f9;color:#222}
header{display:flex;justify-content:space-between;padding:.75rem 1rem;background:#1f3a5f}
header a{color:#fff;text-decoration:none;margin-right:.5rem}
main{max-width:52rem;margin:1rem auto;padding:0 1rem}
.msg{white-space:pre-wrap;padding:.5rem .75rem;margin:.4rem 0;border-radius:6px;background:#fff}
.msg.user{background:#e3efff}.msg.notice{background:#fff4d6}.msg.paper{font-family:serif;border:1px solid #ccc}
table{border-collapse:collapse;width:100%}td,th{border:1px solid #ddd;padding:.4rem;text-align:left}
td[data-band=Excellent]{color:#1a7f37}td[data-band=Weak],td[data-band=NeedsWork]{color:#b3261e}`

const chatJS = `(function(){
var sid=null,log=document.getElementById('log');
function show(ms){(ms||[]).forEach(function(m){var d=document.createElement('div');
d.className='msg '+m.role+' '+m.kind;d.textContent=m.content;log.appendChild(d);
if(m.kind==='paper'){var a=document.getElementById('paper');a.href='/api/sessions/'+sid+'/paper.pdf';a.hidden=false;}});}
function feed(){var p=location.protocol==='https:'?'wss://':'ws://';
var ws=new WebSocket(p+location.host+'/api/sessions/'+sid+'/timer');
ws.onmessage=function(e){var t=JSON.parse(e.data);if(t.state==='not_started')return;
document.getElementById('timer').textContent=Math.floor(t.elapsed_seconds/60)+':'+('0'+t.elapsed_seconds%60).slice(-2)+' '+t.state;};}
document.getElementById('start').onsubmit=function(ev){ev.preventDefault();var f=new FormData(ev.target);
fetch('/api/sessions',{method:'POST',headers:{'Content-Type':'application/json'},body:JSON.stringify({
mode:f.get('mode'),language:f.get('language'),student:{name:f.get('name'),class:f.get('class')}})})
.then(function(r){return r.json();}).then(function(s){sid=s.id;ev.target.hidden=true;
document.getElementById('chat').hidden=false;feed();
return fetch('/api/sessions/'+sid+'/greet',{method:'POST'});}).then(function(r){return r.json();})
.then(function(x){show(x.appended);});};
document.getElementById('send').onsubmit=function(ev){ev.preventDefault();
fetch('/api/sessions/'+sid+'/messages',{method:'POST',body:new FormData(ev.target)})
.then(function(r){return r.json();}).then(function(x){if(x.error){show([{role:'assistant',kind:'notice',content:x.error.message}]);return;}
show(x.appended);});ev.target.reset();};
})();`
