package env

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnresolved is returned when a {{...}} reference has no value.
var ErrUnresolved = errors.New("unresolved template reference")

var (
	variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)
	funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)
)

// Func computes the value of a {{name(args)}} reference.
type Func func(args []string) string

// Resolver substitutes {{...}} references in request inputs. A reference is
// one of:
//
//	{{name}}          a variable set with SetVariable(s)
//	{{$NAME}}         an environment variable
//	{{fn(a, "b")}}    a registered function, e.g. uuid() or timestamp()
//
// It is safe for concurrent use.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]string
	funcs     map[string]Func
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]string),
		funcs: map[string]Func{
			"now":          funcNow,
			"timestamp":    funcTimestamp,
			"timestampMs":  funcTimestampMs,
			"uuid":         funcUUID,
			"randomString": funcRandomString,
			"base64":       funcBase64,
			"urlEncode":    funcURLEncode,
			"date":         funcDate,
		},
	}
}

func (r *Resolver) SetVariables(vars map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

// Register adds or replaces a function.
func (r *Resolver) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Resolve substitutes every reference in input. References without a value
// are left in place and reported together in an error wrapping ErrUnresolved.
func (r *Resolver) Resolve(input string) (string, error) {
	if !strings.Contains(input, "{{") {
		return input, nil
	}

	var unresolved []string
	out := variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		if val, ok := r.lookup(expr); ok {
			return val
		}
		unresolved = append(unresolved, expr)
		return match
	})

	if len(unresolved) > 0 {
		return out, fmt.Errorf("%w: %s", ErrUnresolved, strings.Join(unresolved, ", "))
	}
	return out, nil
}

// ResolveAll resolves every value of values into a new map.
func (r *Resolver) ResolveAll(values map[string]string) (map[string]string, error) {
	if values == nil {
		return nil, nil
	}
	result := make(map[string]string, len(values))
	for k, v := range values {
		resolved, err := r.Resolve(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		result[k] = resolved
	}
	return result, nil
}

func (r *Resolver) lookup(expr string) (string, bool) {
	if name, ok := strings.CutPrefix(expr, "$"); ok {
		return Get(name)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if m := funcCallPattern.FindStringSubmatch(expr); m != nil {
		fn, ok := r.funcs[m[1]]
		if !ok {
			return "", false
		}
		var args []string
		if m[2] != "" {
			args = parseArgs(m[2])
		}
		return fn(args), true
	}

	val, ok := r.variables[expr]
	return val, ok
}

// parseArgs splits a comma-separated argument list, honouring single and
// double quotes.
func parseArgs(s string) []string {
	var (
		args      []string
		current   strings.Builder
		quoteChar byte
	)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quoteChar == 0 && (ch == '"' || ch == '\''):
			quoteChar = ch
		case quoteChar != 0 && ch == quoteChar:
			quoteChar = 0
		case quoteChar == 0 && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}
	return args
}

func funcNow(_ []string) string {
	return time.Now().UTC().Format(time.RFC3339)
}

func funcTimestamp(_ []string) string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}

func funcTimestampMs(_ []string) string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

func funcUUID(_ []string) string {
	return uuid.NewString()
}

func funcRandomString(args []string) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	length := 16
	if len(args) >= 1 {
		if v, err := strconv.Atoi(args[0]); err == nil && v >= 0 {
			length = v
		}
	}
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}

func funcBase64(args []string) string {
	if len(args) < 1 {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(args[0]))
}

func funcURLEncode(args []string) string {
	if len(args) < 1 {
		return ""
	}
	return url.QueryEscape(args[0])
}

func funcDate(args []string) string {
	format := "2006-01-02"
	if len(args) >= 1 {
		format = args[0]
	}
	return time.Now().UTC().Format(format)
}
