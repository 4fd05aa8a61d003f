package loader

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/giovaniif/vending-machine/domain/item"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
	"howett.net/plist"
)

const PackagedResource = "data/VendingInventory.plist"

//go:embed data/VendingInventory.plist
var packaged embed.FS

// FileSource reads an inventory document from a file system. The format is
// picked from the extension: .plist, .json, .yaml/.yml or .toml.
type FileSource struct {
	fsys fs.FS
	name string
}

func NewFileSource(fsys fs.FS, name string) *FileSource {
	return &FileSource{fsys: fsys, name: name}
}

func NewPathSource(p string) *FileSource {
	return NewFileSource(os.DirFS(filepath.Dir(p)), filepath.Base(p))
}

// NewPackagedSource reads the inventory shipped inside the binary.
func NewPackagedSource() *FileSource {
	return NewFileSource(packaged, PackagedResource)
}

func (s *FileSource) Load(ctx context.Context) (item.Inventory, error) {
	data, err := fs.ReadFile(s.fsys, s.name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidResource, s.name, err)
	}
	dictionary, err := decode(s.name, data)
	if err != nil {
		return nil, err
	}
	return FromDictionary(dictionary)
}

func decode(name string, data []byte) (map[string]interface{}, error) {
	var dictionary map[string]interface{}
	var err error

	ext := strings.ToLower(path.Ext(name))
	switch ext {
	case ".plist":
		_, err = plist.Unmarshal(data, &dictionary)
	case ".json":
		err = json.Unmarshal(data, &dictionary)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &dictionary)
	case ".toml":
		err = toml.Unmarshal(data, &dictionary)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrConversion, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConversion, name, err)
	}
	return dictionary, nil
}
