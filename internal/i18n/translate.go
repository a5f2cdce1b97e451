// Package i18n translates locale files: JSON objects of any depth whose
// leaves are strings.
package i18n

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/campusbite/canteen/pkg/logger"
	"github.com/campusbite/canteen/pkg/workerpool"
)

// Job translates Dir/<Source>.json into sibling locale files.
type Job struct {
	Dir        string
	Source     string
	Skip       []string // already translated by hand
	Locales    []string // when empty, every *.json in Dir
	Workers    int
	Translator Translator
}

// Result counts one target's strings.
type Result struct {
	Lang    string
	Path    string
	Strings int
	Failed  int
}

type leaf struct {
	path []string
	text string
}

// Targets resolves the languages to produce. An explicit lang is used as-is;
// otherwise every configured locale except the source and Skip.
func (j *Job) Targets(lang string) ([]string, error) {
	if lang != "" {
		if lang == j.Source {
			return nil, fmt.Errorf("i18n: %q is the source locale", lang)
		}
		return []string{lang}, nil
	}

	locales := j.Locales
	if len(locales) == 0 {
		matches, err := filepath.Glob(filepath.Join(j.Dir, "*.json"))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			locales = append(locales, strings.TrimSuffix(filepath.Base(m), ".json"))
		}
	}

	var out []string
	for _, l := range locales {
		if l == j.Source || slices.Contains(j.Skip, l) || slices.Contains(out, l) {
			continue
		}
		out = append(out, l)
	}
	sort.Strings(out)
	return out, nil
}

// Run translates the source file into each target and writes the results.
func (j *Job) Run(ctx context.Context, lang string) ([]Result, error) {
	targets, err := j.Targets(lang)
	if err != nil {
		return nil, err
	}
	doc, err := ReadFile(filepath.Join(j.Dir, j.Source+".json"))
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(targets))
	for _, target := range targets {
		out, res := TranslateDocument(ctx, doc, j.Source, target, j.Translator, j.Workers)
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res.Path = filepath.Join(j.Dir, target+".json")
		if err := WriteFile(res.Path, out); err != nil {
			return results, err
		}
		logger.Info("i18n: wrote locale", "lang", target, "strings", res.Strings, "failed", res.Failed)
		results = append(results, res)
	}
	return results, nil
}

// TranslateDocument returns a translated copy of doc. A string that fails to
// translate keeps its source text.
func TranslateDocument(ctx context.Context, doc map[string]interface{}, source, target string, tr Translator, workers int) (map[string]interface{}, Result) {
	var leaves []leaf
	collect(doc, nil, &leaves)

	translated := make([]string, len(leaves))
	var failed atomic.Int32
	var wg sync.WaitGroup
	pool := workerpool.New(workers)

	for i, l := range leaves {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			text, err := translateOne(ctx, tr, l.text, source, target)
			if err != nil {
				failed.Add(1)
				logger.Warn("i18n: keeping original text", "key", strings.Join(l.path, "."), "lang", target, "error", err)
				text = l.text
			}
			translated[i] = text
		}
		if err := pool.SubmitWait(ctx, task); err != nil {
			wg.Done()
			translated[i] = l.text
			failed.Add(1)
		}
	}
	wg.Wait()
	pool.Shutdown()

	out := clone(doc)
	for i, l := range leaves {
		set(out, l.path, translated[i])
	}
	return out, Result{Lang: target, Strings: len(leaves), Failed: int(failed.Load())}
}

func translateOne(ctx context.Context, tr Translator, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	masked, tokens := Mask(text)
	if strings.TrimSpace(placeholderRe.ReplaceAllString(text, "")) == "" {
		return text, nil
	}
	out, err := tr.Translate(ctx, masked, source, target)
	if err != nil {
		return "", err
	}
	return Unmask(out, tokens)
}

func collect(node map[string]interface{}, prefix []string, out *[]leaf) {
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		path := append(slices.Clone(prefix), k)
		switch v := node[k].(type) {
		case string:
			*out = append(*out, leaf{path: path, text: v})
		case map[string]interface{}:
			collect(v, path, out)
		}
	}
}

func clone(node map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(node))
	for k, v := range node {
		if m, ok := v.(map[string]interface{}); ok {
			out[k] = clone(m)
			continue
		}
		out[k] = v
	}
	return out
}

func set(node map[string]interface{}, path []string, value string) {
	for _, k := range path[:len(path)-1] {
		node = node[k].(map[string]interface{})
	}
	node[path[len(path)-1]] = value
}

func ReadFile(path string) (map[string]interface{}, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("i18n: %w", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("i18n: parse %s: %w", path, err)
	}
	return doc, nil
}

// WriteFile writes doc as indented JSON without HTML escaping.
func WriteFile(path string, doc map[string]interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		f.Close()
		return fmt.Errorf("i18n: write %s: %w", path, err)
	}
	return f.Close()
}
