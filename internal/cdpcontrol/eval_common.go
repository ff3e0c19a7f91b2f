package cdpcontrol

import (
	"encoding/json"

	"github.com/dgnsrekt/pagesnap/internal/types"
)

// evalEnvelope is what every wrapped evaluation returns, stringified.
type evalEnvelope struct {
	OK           bool            `json:"ok"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// wrapJSEvalAsync runs body in an async function that reports thrown
// errors as a failed envelope.
func wrapJSEvalAsync(body string) string {
	return `(async function(){
try {
` + body + `
} catch (err) {
return JSON.stringify({ok:false,error_code:"` + types.CodeEvalFailure + `",error_message:String(err && err.message || err)});
}
})()`
}

// envelopeBody runs a caller's function body and reports its return value
// as the envelope's data.
func envelopeBody(body string) string {
	return wrapJSEvalAsync("var __data = await (async function(){\n" + body + "\n})();\n" +
		`return JSON.stringify({ok:true,data:(__data === undefined ? null : __data)});`)
}

// envelopeExpr reports the value of a single expression as the envelope's data.
func envelopeExpr(expr string) string {
	return envelopeBody("return (" + expr + ");")
}
