package webhooks

import (
    "encoding/json"
    "regexp"
    "strconv"
    "strings"
    "time"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([\w.]+)\s*\}\}`)

// Envelope builds the default payload wrapper used when a subscription has no
// template configured.
func Envelope(eventType, tenantID string, data map[string]any) map[string]any {
    return map[string]any{
        "event":          eventType,
        "timestamp":      time.Now().UTC().Format(time.RFC3339),
        "organizationId": tenantID,
        "data":           data,
    }
}

// TemplateData is the flat object placeholders resolve against: the event
// payload plus injected context fields.
func TemplateData(eventType, tenantID string, payload map[string]any) map[string]any {
    data := map[string]any{}
    for k, v := range payload {
        data[k] = v
    }
    data["event"] = eventType
    data["tenantId"] = tenantID
    data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
    return data
}

// RenderTemplate recursively walks tmpl, replacing {{dot.path}} placeholders
// in string leaves with values resolved from data. Object keys and non-string
// leaves pass through untouched; array elements are walked in order.
//
// A string leaf that is exactly one placeholder adopts the resolved value's
// native type, so {"n":"{{data.count}}"} renders the number 3 rather than the
// string "3". A placeholder embedded in a larger string always stringifies:
// absent values become "", structured values embed as compact JSON.
func RenderTemplate(tmpl any, data map[string]any) any {
    switch t := tmpl.(type) {
    case map[string]any:
        out := make(map[string]any, len(t))
        for k, v := range t {
            out[k] = RenderTemplate(v, data)
        }
        return out
    case []any:
        out := make([]any, len(t))
        for i, v := range t {
            out[i] = RenderTemplate(v, data)
        }
        return out
    case string:
        return renderString(t, data)
    default:
        return tmpl
    }
}

func renderString(s string, data map[string]any) any {
    // Whole-leaf placeholder keeps the resolved value's type.
    if m := placeholderRe.FindStringSubmatch(s); m != nil && m[0] == s {
        v, ok := resolvePath(data, m[1])
        if !ok || v == nil {
            return ""
        }
        switch v.(type) {
        case string, float64, int, int64, bool:
            return v
        }
        return stringify(v)
    }
    return placeholderRe.ReplaceAllStringFunc(s, func(ph string) string {
        path := placeholderRe.FindStringSubmatch(ph)[1]
        v, ok := resolvePath(data, path)
        if !ok || v == nil {
            return ""
        }
        return stringify(v)
    })
}

// resolvePath traverses dot-separated keys through nested objects.
func resolvePath(data map[string]any, path string) (any, bool) {
    return lookup(data, strings.Split(path, "."))
}

func stringify(v any) string {
    switch t := v.(type) {
    case string:
        return t
    case float64:
        return strconv.FormatFloat(t, 'f', -1, 64)
    case bool:
        return strconv.FormatBool(t)
    }
    b, err := json.Marshal(v)
    if err != nil {
        return ""
    }
    return string(b)
}
