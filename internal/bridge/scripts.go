package bridge

import (
	"encoding/json"
	"fmt"
)

// Page-global slot names. The capture script parks an observed submission in
// the slot; the host polls it because page content has no push channel back
// to the shell.
const (
	slotVar   = "window.__browseAgentCredSlot"
	hookedVar = "window.__browseAgentCaptureHooked"
)

const evalFailureCode = "EVAL_FAILURE"

func jsString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func wrapJSEval(body string) string {
	return `(function(){
try {
` + body + `
} catch (err) {
return JSON.stringify({ok:false,error_code:"` + evalFailureCode + `",error_message:String(err && err.message || err)});
}
})()`
}

const jsFindLoginFields = `
function _loginFields(root) {
  var pw = null, user = null;
  var inputs = root.querySelectorAll("input");
  for (var i = 0; i < inputs.length; i++) {
    var inp = inputs[i];
    if (inp.type === "password") { if (!pw) pw = inp; continue; }
    if (inp.type !== "text" && inp.type !== "email" && inp.type !== "") continue;
    var hint = ((inp.name || "") + " " + (inp.id || "") + " " + (inp.autocomplete || "")).toLowerCase();
    if (!user && (inp.type === "email" || hint.indexOf("user") >= 0 || hint.indexOf("email") >= 0 || hint.indexOf("login") >= 0)) {
      user = inp;
    }
  }
  if (pw && !user) {
    for (var j = 0; j < inputs.length; j++) {
      var cand = inputs[j];
      if ((cand.type === "text" || cand.type === "email") && cand !== pw) { user = cand; break; }
    }
  }
  return {password: pw, username: user};
}
`

// jsInstallCapture scans the DOM for login forms and attaches submit
// listeners that park the observed credentials in the page-global slot. It
// never pushes to the host and never alters site behavior. Idempotent per
// page context via the hooked flag.
func jsInstallCapture() string {
	return wrapJSEval(jsFindLoginFields + `
if (` + hookedVar + `) return JSON.stringify({ok:true,data:{installed:0,already:true}});
var count = 0;
var forms = document.querySelectorAll("form");
for (var f = 0; f < forms.length; f++) {
  (function(form){
    var fields = _loginFields(form);
    if (!fields.password || !fields.username) return;
    form.addEventListener("submit", function(){
      ` + slotVar + ` = {
        url: String(location.href),
        domain: String(location.hostname),
        username: String(fields.username.value || ""),
        password: String(fields.password.value || "")
      };
    });
    count++;
  })(forms[f]);
}
` + hookedVar + ` = true;
return JSON.stringify({ok:true,data:{installed:count,already:false}});
`)
}

// jsTakeSlot reads and clears the credential slot in one evaluation, so a
// submission is consumed at most once even when poll ticks overlap.
func jsTakeSlot() string {
	return wrapJSEval(`
var slot = ` + slotVar + `;
` + slotVar + ` = null;
if (!slot || !slot.username || !slot.password) return JSON.stringify({ok:true,data:{found:false}});
return JSON.stringify({ok:true,data:{found:true,url:slot.url,domain:slot.domain,username:slot.username,password:slot.password}});
`)
}

// jsAutofill writes the stored credential into the first detected login
// field pair and fires input/change events so page logic observes the
// values as user-typed.
func jsAutofill(username, password string) string {
	return wrapJSEval(jsFindLoginFields + fmt.Sprintf(`
var fields = _loginFields(document);
if (!fields.password || !fields.username) return JSON.stringify({ok:true,data:{filled:false}});
function _setValue(inp, val) {
  inp.value = val;
  inp.dispatchEvent(new Event("input", {bubbles:true}));
  inp.dispatchEvent(new Event("change", {bubbles:true}));
}
_setValue(fields.username, %s);
_setValue(fields.password, %s);
return JSON.stringify({ok:true,data:{filled:true}});
`, jsString(username), jsString(password)))
}
