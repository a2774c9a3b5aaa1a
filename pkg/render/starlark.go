package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// TemplateExt is the file extension of Starlark templates.
const TemplateExt = ".star"

// StarlarkRenderer renders data with Starlark scripts read from a template
// directory. A template <name>.star defines render(data) returning a string.
type StarlarkRenderer struct {
	dir     string
	timeout time.Duration
}

// NewStarlarkRenderer creates a renderer for the templates in dir.
func NewStarlarkRenderer(dir string, timeout time.Duration) *StarlarkRenderer {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &StarlarkRenderer{
		dir:     dir,
		timeout: timeout,
	}
}

// Templates lists the template names available in the template directory.
func (r *StarlarkRenderer) Templates() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(r.dir, "*"+TemplateExt))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m[:len(m)-len(TemplateExt)]))
	}
	return names, nil
}

// Has reports whether a template of that name exists.
func (r *StarlarkRenderer) Has(name string) bool {
	info, err := os.Stat(r.path(name))
	return err == nil && !info.IsDir()
}

func (r *StarlarkRenderer) path(name string) string {
	return filepath.Join(r.dir, name+TemplateExt)
}

// Render runs the named template against data. data is converted through its
// JSON form, so struct field names follow the json tags.
func (r *StarlarkRenderer) Render(ctx context.Context, name string, data interface{}) ([]byte, error) {
	script, err := os.ReadFile(r.path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", name, err)
	}

	input, err := toGeneric(data)
	if err != nil {
		return nil, err
	}

	out, err := r.RenderScript(ctx, name+TemplateExt, string(script), input)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	return []byte(out), nil
}

// RenderScript executes script and calls its render function with input.
// Execution is cancelled when the timeout or ctx expires.
func (r *StarlarkRenderer) RenderScript(ctx context.Context, filename, script string, input interface{}) (string, error) {
	evalCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	thread := &starlark.Thread{
		Name:  "render",
		Print: func(_ *starlark.Thread, _ string) {},
	}

	type result struct {
		out string
		err error
	}
	resultCh := make(chan result, 1)

	go func() {
		out, err := renderSync(thread, filename, script, input)
		resultCh <- result{out: out, err: err}
	}()

	select {
	case <-evalCtx.Done():
		thread.Cancel(evalCtx.Err().Error())
		return "", fmt.Errorf("starlark execution timeout after %v", r.timeout)
	case res := <-resultCh:
		return res.out, res.err
	}
}

func renderSync(thread *starlark.Thread, filename, script string, input interface{}) (string, error) {
	predeclared := starlark.StringDict{
		"struct":    starlarkstruct.Default,
		"enumerate": starlark.NewBuiltin("enumerate", builtinEnumerate),
		"zip":       starlark.NewBuiltin("zip", builtinZip),
		"to_yaml":   starlark.NewBuiltin("to_yaml", builtinToYAML),
		"to_json":   starlark.NewBuiltin("to_json", builtinToJSON),
	}

	globals, err := starlark.ExecFile(thread, filename, script, predeclared)
	if err != nil {
		return "", fmt.Errorf("starlark execution failed: %w", err)
	}

	fn, ok := globals["render"].(starlark.Callable)
	if !ok {
		return "", fmt.Errorf("template does not define render(data)")
	}

	arg, err := toStarlarkValue(input)
	if err != nil {
		return "", fmt.Errorf("failed to convert input: %w", err)
	}

	out, err := starlark.Call(thread, fn, starlark.Tuple{arg}, nil)
	if err != nil {
		return "", fmt.Errorf("render failed: %w", err)
	}

	s, ok := starlark.AsString(out)
	if !ok {
		return "", fmt.Errorf("render returned %s, want string", out.Type())
	}
	return s, nil
}

// toGeneric converts data into maps, slices and scalars via JSON, keeping
// integers as json.Number.
func toGeneric(data interface{}) (interface{}, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode render input: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode render input: %w", err)
	}
	return out, nil
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return starlark.MakeInt64(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, err
		}
		return starlark.Float(f), nil
	case string:
		return starlark.String(val), nil
	case []interface{}:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = starlarkItem
		}
		return starlark.NewList(list), nil
	case map[string]interface{}:
		dict := starlark.NewDict(len(val))
		for _, k := range sortedKeys(val) {
			starlarkVal, err := toStarlarkValue(val[k])
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), starlarkVal); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value to a Go value.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case starlark.Tuple:
		list := make([]interface{}, len(val))
		for i, item := range val {
			goItem, err := fromStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = goItem
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]interface{})
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]interface{})
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}

// builtinEnumerate implements enumerate(iterable, start=0).
func builtinEnumerate(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var iterable starlark.Iterable
	var start int64 = 0

	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "iterable", &iterable, "start?", &start); err != nil {
		return nil, err
	}

	iter := iterable.Iterate()
	defer iter.Done()

	var list []starlark.Value
	var x starlark.Value
	i := start
	for iter.Next(&x) {
		list = append(list, starlark.Tuple{starlark.MakeInt64(i), x})
		i++
	}

	return starlark.NewList(list), nil
}

// builtinZip implements zip(*iterables).
func builtinZip(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) == 0 {
		return starlark.NewList(nil), nil
	}

	iters := make([]starlark.Iterator, len(args))
	for i, arg := range args {
		iterable, ok := arg.(starlark.Iterable)
		if !ok {
			return nil, fmt.Errorf("zip argument %d is not iterable", i)
		}
		iters[i] = iterable.Iterate()
		defer iters[i].Done()
	}

	var list []starlark.Value
	for {
		tuple := make(starlark.Tuple, len(iters))
		for i, iter := range iters {
			if !iter.Next(&tuple[i]) {
				return starlark.NewList(list), nil
			}
		}
		list = append(list, tuple)
	}
}

// builtinToYAML implements to_yaml(value).
func builtinToYAML(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &value); err != nil {
		return nil, err
	}
	goVal, err := fromStarlarkValue(value)
	if err != nil {
		return nil, err
	}
	out, err := marshalYAML(goVal)
	if err != nil {
		return nil, err
	}
	return starlark.String(out), nil
}

// builtinToJSON implements to_json(value).
func builtinToJSON(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &value); err != nil {
		return nil, err
	}
	goVal, err := fromStarlarkValue(value)
	if err != nil {
		return nil, err
	}
	out, err := json.MarshalIndent(goVal, "", "  ")
	if err != nil {
		return nil, err
	}
	return starlark.String(out), nil
}
