package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// fingerprintTemplate mimics the telemetry blob the desktop sign-in page
// collects from a real browser. Placeholders are substituted per login
// attempt; everything else is fixed.
const fingerprintTemplate = `{
  "start": {{TIME_NOW}},
  "interaction": {
    "keys": 14,
    "keyPressTimeIntervals": [128, 102, 97, 311, 144, 89, 120, 133, 105, 98, 251, 114, 126],
    "copies": 0,
    "cuts": 0,
    "pastes": 0,
    "clicks": 2,
    "touches": 0,
    "mouseClickPositions": ["657,319", "657,319"],
    "keyCycles": [74, 66, 59, 70, 62, 58, 65, 71, 60, 63, 68, 57, 61, 64],
    "mouseCycles": [111, 94],
    "touchCycles": []
  },
  "version": "3.0.0",
  "lsUbid": "X39-6721012-8795219:1549849158",
  "timeZone": -6,
  "scripts": {
    "dynamicUrls": [
      "https://images-na.ssl-images-amazon.com/images/I/61HHaoAEflL._RC|11-BZEJ8lnL.js,01qkmZhGmAL.js,71qOHv6nKaL.js_.js?AUIClients/AuthenticationPortalAssets#mobile",
      "https://images-na.ssl-images-amazon.com/images/I/21T7I7qVEeL._RC|21T1XtqIBZL.js,21WEJWRAQlL.js,31DwnWh8lFL.js_.js?AUIClients/AuthenticationPortalInlineAssets",
      "https://images-na.ssl-images-amazon.com/images/I/17UfzFYCukL._RC|11URCHGAIUL.js,01S8y9NkxoL.js_.js?AUIClients/CVFAssets"
    ],
    "inlineHashes": [
      -1746719145, 1334687281, -314038750, 1184642547, -137736901,
      318224283, 585973559, 1103694443, 11288800, 1011393395,
      -1082391519, 1979184255, 1147404154, -1194029967
    ],
    "elapsed": 52,
    "dynamicUrlCount": 3,
    "inlineHashesCount": 14
  },
  "plugins": "unknown||320-568-548-900-1300-1300-1300-XYO 1",
  "dupedPlugins": "unknown||320-568-548-900-1300-1300-1300-XYO 1",
  "screenInfo": "320-568-548-900-1300-1300-1300-XYO 1",
  "capabilities": {
    "js": {
      "audio": true,
      "geolocation": true,
      "localStorage": "supported",
      "touch": false,
      "video": true,
      "webWorker": true
    },
    "css": {
      "textShadow": true,
      "textStroke": true,
      "boxShadow": true,
      "borderRadius": true,
      "borderImage": true,
      "opacity": true,
      "transform": true,
      "transition": true
    },
    "elapsed": 1
  },
  "referrer": "",
  "userAgent": "{{USER_AGENT}}",
  "location": "{{LOCATION}}",
  "webDriver": null,
  "history": {
    "length": 1
  },
  "gpu": {
    "vendor": "Google Inc.",
    "model": "ANGLE (Intel(R) HD Graphics 620 Direct3D11 vs_5_0 ps_5_0)",
    "extensions": []
  },
  "math": {
    "tan": "-1.4214488238747245",
    "sin": "0.8178819121159085",
    "cos": "-0.5753861119575491"
  },
  "performance": {
    "timing": {
      "navigationStart": {{TIME_NOW}},
      "unloadEventStart": 0,
      "unloadEventEnd": 0,
      "redirectStart": 0,
      "redirectEnd": 0,
      "fetchStart": {{TIME_NOW}},
      "domainLookupStart": {{TIME_NOW}},
      "domainLookupEnd": {{TIME_NOW}},
      "connectStart": {{TIME_NOW}},
      "connectEnd": {{TIME_NOW}},
      "secureConnectionStart": {{TIME_NOW}},
      "requestStart": {{TIME_NOW}},
      "responseStart": {{TIME_NOW}},
      "responseEnd": {{TIME_NOW}},
      "domLoading": {{TIME_NOW}},
      "domInteractive": {{TIME_NOW}},
      "domContentLoadedEventStart": {{TIME_NOW}},
      "domContentLoadedEventEnd": {{TIME_NOW}},
      "domComplete": {{TIME_NOW}},
      "loadEventStart": {{TIME_NOW}},
      "loadEventEnd": {{TIME_NOW}}
    }
  },
  "end": {{TIME_NOW}},
  "timeToSubmit": 13733,
  "form": {
    "email": {
      "keys": 0,
      "keyPressTimeIntervals": [],
      "copies": 0,
      "cuts": 0,
      "pastes": 0,
      "clicks": 0,
      "touches": 0,
      "mouseClickPositions": [],
      "keyCycles": [],
      "mouseCycles": [],
      "touchCycles": [],
      "width": 290,
      "height": 43,
      "checksum": "C860E86B",
      "time": 12773,
      "autocomplete": false,
      "prefilled": false
    },
    "password": {
      "keys": 0,
      "keyPressTimeIntervals": [],
      "copies": 0,
      "cuts": 0,
      "pastes": 0,
      "clicks": 0,
      "touches": 0,
      "mouseClickPositions": [],
      "keyCycles": [],
      "mouseCycles": [],
      "touchCycles": [],
      "width": 290,
      "height": 43,
      "time": 10353,
      "autocomplete": false,
      "prefilled": false
    }
  },
  "canvas": {
    "hash": -373378155,
    "emailHash": null,
    "histogramBins": []
  },
  "token": null,
  "errors": [],
  "metrics": [
    {"n": "fwcim-mercury-collector", "t": 0},
    {"n": "fwcim-instant-collector", "t": 0},
    {"n": "fwcim-element-telemetry-collector", "t": 2},
    {"n": "fwcim-script-version-collector", "t": 0},
    {"n": "fwcim-local-storage-identifier-collector", "t": 0},
    {"n": "fwcim-timezone-collector", "t": 0},
    {"n": "fwcim-script-collector", "t": 1},
    {"n": "fwcim-plugin-collector", "t": 0},
    {"n": "fwcim-capability-collector", "t": 1},
    {"n": "fwcim-browser-collector", "t": 0},
    {"n": "fwcim-history-collector", "t": 0},
    {"n": "fwcim-gpu-collector", "t": 1},
    {"n": "fwcim-battery-collector", "t": 0},
    {"n": "fwcim-dnt-collector", "t": 0},
    {"n": "fwcim-math-fingerprint-collector", "t": 0},
    {"n": "fwcim-performance-collector", "t": 0},
    {"n": "fwcim-timer-collector", "t": 0},
    {"n": "fwcim-time-to-submit-collector", "t": 0},
    {"n": "fwcim-form-input-telemetry-collector", "t": 4},
    {"n": "fwcim-canvas-collector", "t": 2},
    {"n": "fwcim-captcha-telemetry-collector", "t": 0},
    {"n": "fwcim-proof-of-work-collector", "t": 1},
    {"n": "fwcim-ubf-collector", "t": 0},
    {"n": "fwcim-timer-collector", "t": 0}
  ]
}`

// DesktopFingerprint renders the fingerprint for one sign-in attempt: the
// user agent, the current unix-millisecond timestamp, and the delegated
// sign-in URL are substituted and the JSON is compacted. The result is the
// plaintext for Codec.Encrypt.
func DesktopFingerprint(userAgent, location string) (string, error) {
	rendered := strings.NewReplacer(
		"{{USER_AGENT}}", userAgent,
		"{{TIME_NOW}}", strconv.FormatInt(time.Now().UnixMilli(), 10),
		"{{LOCATION}}", location,
	).Replace(fingerprintTemplate)

	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(rendered)); err != nil {
		return "", fmt.Errorf("fingerprint template is not valid JSON: %w", err)
	}
	return compact.String(), nil
}
