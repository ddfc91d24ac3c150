package jsengine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"golang.org/x/net/html"
)

var errSyntax = errors.New("syntax error")

// sourceFile is one loaded script or HTML page. Every inline script of a page
// is parsed as its own program against a buffer in which all other bytes are
// blanked, so offsets stay HTML-file offsets.
type sourceFile struct {
	url       string // absolute path, or the bootstrap file name
	src       []byte // script text; for pages, every inline script in place
	bootstrap bool
	trees     []*sitter.Tree         // one per program
	requires  map[string]*sourceFile // module specifier -> loaded file
	exports   *binding               // functions assigned to module.exports
}

// scriptBlock is the byte range of one inline script body.
type scriptBlock struct {
	start, end int
}

// loader reads the entry file and everything it pulls in.
type loader struct {
	opts   Options
	logger *slog.Logger
	parser *sitter.Parser
	files  []*sourceFile
	byPath map[string]*sourceFile
}

func newLoader(opts Options) *loader {
	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())
	return &loader{
		opts:   opts,
		logger: opts.logger(),
		parser: parser,
		byPath: make(map[string]*sourceFile),
	}
}

func (l *loader) close() {
	for _, f := range l.files {
		for _, tree := range f.trees {
			tree.Close()
		}
	}
	l.parser.Close()
}

// loadBootstrap parses the embedded runtime model.
func (l *loader) loadBootstrap(ctx context.Context) error {
	for _, name := range bootstrapFiles {
		src, err := runtimeFS.ReadFile("runtime/" + name)
		if err != nil {
			return fmt.Errorf("reading bootstrap %s: %w", name, err)
		}
		f := &sourceFile{
			url:       name,
			src:       src,
			bootstrap: true,
			requires:  make(map[string]*sourceFile),
			exports:   newBinding(),
		}
		tree, err := l.parse(ctx, name, src)
		if err != nil {
			return err
		}
		f.trees = append(f.trees, tree)
		l.files = append(l.files, f)
	}
	return nil
}

// loadEntry loads entry and, transitively, its scripts and modules.
func (l *loader) loadEntry(ctx context.Context, entry string) (*sourceFile, error) {
	abs, err := filepath.Abs(entry)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", entry, err)
	}
	return l.load(ctx, filepath.Clean(abs), true)
}

func (l *loader) load(ctx context.Context, path string, required bool) (*sourceFile, error) {
	if f, ok := l.byPath[path]; ok {
		return f, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !required && l.excluded(path) {
		l.logger.Debug("skipping excluded file", "path", path)
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if required {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		l.logger.Warn("cannot load dependency", "path", path, "error", err)
		return nil, nil
	}

	f := &sourceFile{
		url:      path,
		requires: make(map[string]*sourceFile),
		exports:  newBinding(),
	}
	l.byPath[path] = f

	var scriptSrcs []string
	if isHTML(path) {
		var blocks []scriptBlock
		f.src, blocks, scriptSrcs, err = extractScripts(data)
		if err != nil {
			return nil, fmt.Errorf("reading scripts from %s: %w", path, err)
		}
		if err := l.parseBlocks(ctx, f, blocks); err != nil {
			return nil, err
		}
	} else {
		f.src = data
		tree, err := l.parse(ctx, path, data)
		if err != nil {
			return nil, err
		}
		f.trees = append(f.trees, tree)
	}
	l.files = append(l.files, f)

	dir := filepath.Dir(path)
	for _, src := range scriptSrcs {
		if strings.Contains(src, "://") || strings.HasPrefix(src, "//") {
			l.logger.Debug("skipping remote script", "src", src)
			continue
		}
		target := filepath.Clean(filepath.Join(dir, filepath.FromSlash(src)))
		dep, err := l.load(ctx, target, false)
		if err != nil {
			return nil, err
		}
		if dep != nil {
			f.requires[src] = dep
		}
	}

	for _, tree := range f.trees {
		for _, spec := range moduleSpecifiers(tree.RootNode(), f.src) {
			target, ok := resolveModule(dir, spec)
			if !ok {
				continue
			}
			dep, err := l.load(ctx, target, false)
			if err != nil {
				return nil, err
			}
			if dep != nil {
				f.requires[spec] = dep
			}
		}
	}

	return f, nil
}

func (l *loader) parse(ctx context.Context, url string, src []byte) (*sitter.Tree, error) {
	tree, err := l.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", url, err)
	}
	if root := tree.RootNode(); root.HasError() {
		pos := firstError(root)
		tree.Close()
		return nil, fmt.Errorf("parsing %s: %w at byte %d", url, errSyntax, pos)
	}
	return tree, nil
}

// parseBlocks parses each inline script of a page on its own. A block with a
// syntax error is skipped, as a browser would.
func (l *loader) parseBlocks(ctx context.Context, f *sourceFile, blocks []scriptBlock) error {
	for _, b := range blocks {
		buf := blank(f.src)
		copy(buf[b.start:b.end], f.src[b.start:b.end])
		tree, err := l.parse(ctx, f.url, buf)
		if errors.Is(err, errSyntax) {
			l.logger.Warn("skipping script block", "path", f.url, "start", b.start, "end", b.end, "error", err)
			continue
		}
		if err != nil {
			return err
		}
		f.trees = append(f.trees, tree)
	}
	return nil
}

func (l *loader) excluded(path string) bool {
	rel := path
	if l.opts.BaseDir != "" {
		if r, err := filepath.Rel(l.opts.BaseDir, path); err == nil {
			rel = r
		}
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range l.opts.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func isHTML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".html" || ext == ".htm"
}

// blank returns a copy of data with every byte but line breaks replaced by a space.
func blank(data []byte) []byte {
	out := make([]byte, len(data))
	for i, c := range data {
		if c == '\n' || c == '\r' {
			out[i] = c
		} else {
			out[i] = ' '
		}
	}
	return out
}

// extractScripts returns data with everything outside JavaScript <script>
// bodies blanked, the byte range of each inline body, and the src attributes
// of external scripts.
func extractScripts(data []byte) ([]byte, []scriptBlock, []string, error) {
	src := blank(data)

	var (
		blocks []scriptBlock
		srcs   []string
	)
	z := html.NewTokenizer(bytes.NewReader(data))
	offset := 0
	inScript := false
	for {
		tt := z.Next()
		raw := z.Raw()
		start := offset
		offset += len(raw)

		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return src, blocks, srcs, nil
			}
			return nil, nil, nil, z.Err()
		case html.TextToken:
			if !inScript || len(raw) == 0 {
				continue
			}
			copy(src[start:], raw)
			if last := len(blocks) - 1; last >= 0 && blocks[last].end == start {
				blocks[last].end = offset
			} else {
				blocks = append(blocks, scriptBlock{start: start, end: offset})
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "script" {
				continue
			}
			var scriptType, scriptSrc string
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				switch string(key) {
				case "type":
					scriptType = string(val)
				case "src":
					scriptSrc = string(val)
				}
			}
			if !isScriptType(scriptType) {
				continue
			}
			if scriptSrc != "" {
				srcs = append(srcs, scriptSrc)
			}
			inScript = tt == html.StartTagToken && scriptSrc == ""
		case html.EndTagToken:
			inScript = false
		}
	}
}

func isScriptType(t string) bool {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "", "text/javascript", "application/javascript", "module":
		return true
	default:
		return false
	}
}

// moduleSpecifiers collects require(), import() and import/export-from specifiers.
func moduleSpecifiers(root *sitter.Node, src []byte) []string {
	var specs []string
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "call_expression":
			callee := n.ChildByFieldName("function")
			if callee == nil {
				return true
			}
			if callee.Type() == "import" || (callee.Type() == "identifier" && callee.Content(src) == "require") {
				if args := n.ChildByFieldName("arguments"); args != nil && args.NamedChildCount() > 0 {
					if s, ok := stringValue(args.NamedChild(0), src); ok {
						specs = append(specs, s)
					}
				}
			}
		case "import_statement", "export_statement":
			if source := n.ChildByFieldName("source"); source != nil {
				if s, ok := stringValue(source, src); ok {
					specs = append(specs, s)
				}
			}
		}
		return true
	})
	return specs
}

// resolveModule maps a relative specifier to a file, trying the usual extensions.
func resolveModule(dir, spec string) (string, bool) {
	if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") && !strings.HasPrefix(spec, "/") {
		return "", false
	}
	base := filepath.FromSlash(spec)
	if !filepath.IsAbs(base) {
		base = filepath.Join(dir, base)
	}
	base = filepath.Clean(base)

	candidates := []string{
		base,
		base + ".js",
		base + ".mjs",
		base + ".cjs",
		filepath.Join(base, "index.js"),
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() {
			return c, true
		}
	}
	return "", false
}

func stringValue(n *sitter.Node, src []byte) (string, bool) {
	if n == nil || n.Type() != "string" {
		return "", false
	}
	s := n.Content(src)
	if len(s) < 2 {
		return "", false
	}
	return s[1 : len(s)-1], true
}

// walk visits n and its descendants depth-first; visit returns false to prune.
func walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), visit)
	}
}

func firstError(root *sitter.Node) uint32 {
	pos := root.StartByte()
	found := false
	walk(root, func(n *sitter.Node) bool {
		if found {
			return false
		}
		if n.IsError() || n.IsMissing() {
			pos = n.StartByte()
			found = true
			return false
		}
		return n.HasError()
	})
	return pos
}
