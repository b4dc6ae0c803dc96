package naming

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/sha3"
)

// digestLength is the number of hex characters of the SHA3-256 digest used
// to disambiguate colliding asset file names.
const digestLength = 8

// Entry is one planned asset file.
type Entry struct {
	// URL is the absolute asset URL, without fragment.
	URL string

	// FileName is the file name inside the assets folder.
	FileName string

	// Path is the absolute file path the asset is written to.
	Path string
}

// Plan is the filesystem layout of one load: the page file, the assets
// folder and one file per distinct asset URL. It is computed before any
// asset is fetched and depends only on the page URL, the destination
// directory and the order in which assets are added.
//
// A Plan is not safe for concurrent mutation. Once built it is read-only.
type Plan struct {
	// PageFilePath is the absolute path of the saved page.
	PageFilePath string

	// AssetsFolderName is the folder name used in rewritten references.
	AssetsFolderName string

	// AssetsFolderPath is the absolute path of the assets folder.
	AssetsFolderPath string

	baseURL *url.URL
	entries []Entry
	byURL   map[string]int
	owners  map[string]string
}

// NewPlan creates an empty plan for pageURL saved under destDir.
func NewPlan(pageURL *url.URL, destDir string) (*Plan, error) {
	absDir, err := filepath.Abs(destDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve destination directory %q: %w", destDir, err)
	}

	folder := AssetsFolderName(pageURL)
	return &Plan{
		PageFilePath:     filepath.Join(absDir, PageFileName(pageURL)),
		AssetsFolderName: folder,
		AssetsFolderPath: filepath.Join(absDir, folder),
		baseURL:          pageURL,
		entries:          make([]Entry, 0),
		byURL:            make(map[string]int),
		owners:           make(map[string]string),
	}, nil
}

// Add plans a file for assetURL and returns its entry. Adding the same
// absolute URL twice returns the first entry. When a different URL already
// owns the computed file name, a digest of the URL is inserted before the
// extension so no asset is silently overwritten.
func (p *Plan) Add(assetURL *url.URL) Entry {
	resolved := p.baseURL.ResolveReference(assetURL)
	key := AssetKey(resolved)

	if i, ok := p.byURL[key]; ok {
		return p.entries[i]
	}

	name := AssetFileName(resolved, p.baseURL)
	if owner, taken := p.owners[name]; taken && owner != key {
		name = p.disambiguate(name, key)
	}
	p.owners[name] = key

	entry := Entry{
		URL:      key,
		FileName: name,
		Path:     filepath.Join(p.AssetsFolderPath, name),
	}
	p.byURL[key] = len(p.entries)
	p.entries = append(p.entries, entry)
	return entry
}

// AssetKey returns the identity of an absolute asset URL: the URL without
// its fragment. Two references with the same key share one file.
func AssetKey(u *url.URL) string {
	k := *u
	k.Fragment = ""
	k.RawFragment = ""
	return k.String()
}

// disambiguate derives a free name from name using a digest of key.
func (p *Plan) disambiguate(name, key string) string {
	sum := sha3.Sum256([]byte(key))
	digest := hex.EncodeToString(sum[:])

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := digestLength; n <= len(digest); n += digestLength {
		candidate := stem + "-" + digest[:n] + ext
		if _, taken := p.owners[candidate]; !taken {
			return candidate
		}
	}
	// A full 256-bit digest match means an identical key.
	return stem + "-" + digest + ext
}

// RelativePath returns the reference written into the page for entry.
// It always uses forward slashes. File names keep decoded characters such
// as '#', '?' or '%', so the reference is percent-encoded to point at the
// file itself.
func (p *Plan) RelativePath(entry Entry) string {
	ref := &url.URL{Path: path.Join(p.AssetsFolderName, entry.FileName)}
	return ref.EscapedPath()
}

// Entries returns the planned assets in the order they were first added.
func (p *Plan) Entries() []Entry {
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Lookup returns the entry planned for the absolute URL rawURL.
func (p *Plan) Lookup(rawURL string) (Entry, bool) {
	i, ok := p.byURL[rawURL]
	if !ok {
		return Entry{}, false
	}
	return p.entries[i], true
}

// Len returns the number of distinct planned assets.
func (p *Plan) Len() int {
	return len(p.entries)
}
