package browser

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Action identifies a declarative step kind.
type Action string

const (
	ActionNavigate   Action = "navigate"
	ActionFind       Action = "find"
	ActionType       Action = "type"
	ActionKey        Action = "key"
	ActionClick      Action = "click"
	ActionWait       Action = "wait"
	ActionScreenshot Action = "screenshot"
)

// Step is one declarative UI action within a plan item. Target carries the
// action's single parameter: a URL for navigate, a fuzzy element query for
// find, text for type, a key name for key, a label for screenshot.
type Step struct {
	Name            string        `json:"name" yaml:"name"`
	Description     string        `json:"description,omitempty" yaml:"description,omitempty"`
	Action          Action        `json:"action" yaml:"action"`
	Target          string        `json:"target,omitempty" yaml:"target,omitempty"`
	Repeat          int           `json:"repeat,omitempty" yaml:"repeat,omitempty"`
	Wait            time.Duration `json:"wait,omitempty" yaml:"wait,omitempty"`
	Required        bool          `json:"required" yaml:"required"`
	WaitAfter       time.Duration `json:"wait_after,omitempty" yaml:"wait_after,omitempty"`
	ScreenshotAfter bool          `json:"screenshot_after,omitempty" yaml:"screenshot_after,omitempty"`
}

// Step constructors. All steps default to required; callers clear the flag
// for cosmetic steps.

func navigateStep(name, target string) Step {
	return Step{
		Name:        name,
		Description: "Navigate to " + target,
		Action:      ActionNavigate,
		Target:      target,
		Required:    true,
		WaitAfter:   2500 * time.Millisecond,
	}
}

func findStep(name, query string) Step {
	return Step{
		Name:        name,
		Description: "Find " + query,
		Action:      ActionFind,
		Target:      query,
		Required:    true,
	}
}

func typeStep(name, text string) Step {
	return Step{
		Name:        name,
		Description: "Type into active element",
		Action:      ActionType,
		Target:      text,
		Required:    true,
	}
}

func keyStep(name, key string, repeat int) Step {
	return Step{
		Name:        name,
		Description: fmt.Sprintf("Dispatch key %s x%d", key, repeat),
		Action:      ActionKey,
		Target:      key,
		Repeat:      repeat,
		Required:    true,
	}
}

func clickStep(name string) Step {
	return Step{
		Name:        name,
		Description: "Click active element",
		Action:      ActionClick,
		Required:    true,
	}
}

func waitStep(name string, d time.Duration) Step {
	return Step{
		Name:        name,
		Description: "Wait for UI",
		Action:      ActionWait,
		Wait:        d,
		Required:    false,
	}
}

func screenshotStep(name, label string) Step {
	return Step{
		Name:        name,
		Description: "Capture page state",
		Action:      ActionScreenshot,
		Target:      label,
		Required:    false,
	}
}

// deeplink builds an app URL that deep-links into the SPA via /?url=<path>.
func deeplink(base, path string) string {
	return strings.TrimRight(base, "/") + "/?url=" + url.QueryEscape(path)
}

// findAndFocusScript locates the best element for a fuzzy text query and
// focuses it. The matcher scores visible interactive elements by token
// overlap between the query and their text, label, and placeholder.
func findAndFocusScript(query string) string {
	q, _ := json.Marshal(strings.ToLower(query))
	return `(() => {
  const query = ` + string(q) + `;
  const tokens = query.split(/\s+/).filter(Boolean);
  const candidates = document.querySelectorAll('button, a, input, textarea, select, [role="button"], [contenteditable]');
  let best = null, bestScore = 0;
  for (const el of candidates) {
    const rect = el.getBoundingClientRect();
    if (rect.width === 0 || rect.height === 0) continue;
    const text = ((el.innerText || '') + ' ' + (el.value || '') + ' ' +
      (el.getAttribute('aria-label') || '') + ' ' + (el.getAttribute('placeholder') || '') + ' ' +
      (el.getAttribute('title') || '')).toLowerCase();
    let score = 0;
    for (const t of tokens) if (text.includes(t)) score++;
    if (text.trim() === query) score += tokens.length;
    if (score > bestScore) { bestScore = score; best = el; }
  }
  if (!best || bestScore === 0) return { found: false };
  best.scrollIntoView({ block: 'center' });
  best.focus();
  if (typeof best.click === 'function' && best.tagName !== 'INPUT' && best.tagName !== 'TEXTAREA') best.click();
  return { found: true, tag: best.tagName, score: bestScore };
})()`
}

// typeActiveScript types text into the focused element through native
// value setters so framework change detection fires.
func typeActiveScript(text string) string {
	t, _ := json.Marshal(text)
	return `(() => {
  const el = document.activeElement;
  if (!el) return { ok: false };
  const text = ` + string(t) + `;
  if (el.isContentEditable) {
    el.textContent = text;
    el.dispatchEvent(new InputEvent('input', { bubbles: true }));
    return { ok: true };
  }
  const proto = el.tagName === 'TEXTAREA' ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
  const setter = Object.getOwnPropertyDescriptor(proto, 'value');
  if (!setter || !setter.set) return { ok: false };
  setter.set.call(el, text);
  el.dispatchEvent(new Event('input', { bubbles: true }));
  el.dispatchEvent(new Event('change', { bubbles: true }));
  return { ok: true };
})()`
}

// keyDispatchScript dispatches a keyboard event to the focused element.
func keyDispatchScript(key string, repeat int) string {
	if repeat < 1 {
		repeat = 1
	}
	k, _ := json.Marshal(key)
	return fmt.Sprintf(`(() => {
  const el = document.activeElement || document.body;
  const key = %s;
  for (let i = 0; i < %d; i++) {
    el.dispatchEvent(new KeyboardEvent('keydown', { key, bubbles: true }));
    el.dispatchEvent(new KeyboardEvent('keyup', { key, bubbles: true }));
  }
  return { ok: true };
})()`, string(k), repeat)
}

const clickActiveScript = `(() => {
  const el = document.activeElement;
  if (!el || typeof el.click !== 'function') return { ok: false };
  el.click();
  return { ok: true };
})()`
