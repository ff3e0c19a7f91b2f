package selector

import (
	"encoding/json"
	"fmt"
)

// BindingName is the page binding the overlay reports events through.
const BindingName = "__pagesnapSelect"

// injectBody installs the overlay once per page. It returns
// {installed:false} when an overlay is already active.
const injectBody = `
if (window.__pagesnapSelectorActive) { return {installed: false}; }
window.__pagesnapSelectorActive = true;
var send = function(ev) {
  try { window.` + BindingName + `(JSON.stringify(ev)); } catch (e) {}
};
var root = document.createElement('div');
root.setAttribute('data-pagesnap-selector', '');
root.style.cssText = 'position:fixed;inset:0;z-index:2147483647;cursor:crosshair;' +
  'background:rgba(0,0,0,0.3);user-select:none;-webkit-user-select:none;';
var box = document.createElement('div');
box.style.cssText = 'position:fixed;display:none;border:2px solid #2f80ed;' +
  'background:rgba(47,128,237,0.12);box-shadow:0 0 0 9999px rgba(0,0,0,0.2);pointer-events:none;';
var label = document.createElement('div');
label.style.cssText = 'position:fixed;display:none;padding:3px 6px;border-radius:3px;' +
  'font:12px/16px monospace;color:#fff;background:rgba(0,0,0,0.75);pointer-events:none;white-space:nowrap;';
root.appendChild(box);
root.appendChild(label);
(document.body || document.documentElement).appendChild(root);

var onDown = function(e) { if (e.button !== 0) return; e.preventDefault(); send({type:'pointerdown', x:e.clientX, y:e.clientY}); };
var onMove = function(e) { send({type:'pointermove', x:e.clientX, y:e.clientY}); };
var onUp = function(e) { if (e.button !== 0) return; e.preventDefault(); send({type:'pointerup', x:e.clientX, y:e.clientY}); };
var onKey = function(e) { if (e.key === 'Escape' || e.key === 'Esc') { e.preventDefault(); e.stopPropagation(); send({type:'keydown', key:e.key}); } };
root.addEventListener('mousedown', onDown, true);
window.addEventListener('mousemove', onMove, true);
window.addEventListener('mouseup', onUp, true);
window.addEventListener('keydown', onKey, true);

window.__pagesnapSelector = {
  render: function(s) {
    root.style.background = 'transparent';
    box.style.display = 'block';
    box.style.left = s.rect.x + 'px';
    box.style.top = s.rect.y + 'px';
    box.style.width = s.rect.width + 'px';
    box.style.height = s.rect.height + 'px';
    label.style.display = 'block';
    label.textContent = s.label.text;
    label.style.left = s.label.x + 'px';
    label.style.top = s.label.y + 'px';
  },
  teardown: function() {
    root.removeEventListener('mousedown', onDown, true);
    window.removeEventListener('mousemove', onMove, true);
    window.removeEventListener('mouseup', onUp, true);
    window.removeEventListener('keydown', onKey, true);
    if (root.parentNode) { root.parentNode.removeChild(root); }
    delete window.__pagesnapSelector;
    window.__pagesnapSelectorActive = false;
  }
};
send({type:'ready', viewport_width: window.innerWidth, viewport_height: window.innerHeight, pixel_density: window.devicePixelRatio || 1});
return {installed: true};
`

const teardownBody = `
if (window.__pagesnapSelector) { window.__pagesnapSelector.teardown(); return true; }
window.__pagesnapSelectorActive = false;
return false;
`

type renderPayload struct {
	Rect  Rect  `json:"rect"`
	Label Label `json:"label"`
}

func renderBody(r Rect, l Label) string {
	b, _ := json.Marshal(renderPayload{Rect: r, Label: l})
	return fmt.Sprintf("if (window.__pagesnapSelector) { window.__pagesnapSelector.render(%s); return true; }\nreturn false;", b)
}
