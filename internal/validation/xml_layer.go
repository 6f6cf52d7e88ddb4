package validation

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/filemgr/internal/models"
	appErrors "github.com/noah-isme/filemgr/pkg/errors"
	"github.com/noah-isme/filemgr/pkg/storage"
)

const (
	// ElementsFile and TypeMapFile are the policy documents read from the
	// layer's directory.
	ElementsFile = "elements.xml"
	TypeMapFile  = "product-type-element-map.xml"

	casNamespace = "http://oodt.jpl.nasa.gov/1.0/cas"
)

type xmlElementsDoc struct {
	XMLName  xml.Name
	NS       string       `xml:"xmlns:cas,attr,omitempty"`
	Elements []xmlElement `xml:"element"`
}

type xmlElement struct {
	ID          string `xml:"id,attr"`
	Name        string `xml:"name,attr"`
	Description string `xml:"description"`
	DCElement   string `xml:"dcElement"`
}

type xmlTypeMapDoc struct {
	XMLName xml.Name
	NS      string    `xml:"xmlns:cas,attr,omitempty"`
	Types   []xmlType `xml:"type"`
}

type xmlType struct {
	ID       string       `xml:"id,attr"`
	Parent   string       `xml:"parent,attr,omitempty"`
	Elements []xmlElemRef `xml:"element"`
}

type xmlElemRef struct {
	ID string `xml:"id,attr"`
}

type typeEntry struct {
	id       string
	parent   string
	elements []string
}

// XMLLayer keeps the element schema in two XML documents. State is held in
// insertion order in memory; each mutation rewrites the affected document
// atomically and is reverted in memory when the write fails.
type XMLLayer struct {
	dir    string
	logger *zap.Logger

	mu       sync.RWMutex
	elements []models.Element
	types    []typeEntry
}

// NewXMLLayer loads dir/elements.xml and dir/product-type-element-map.xml.
// Missing files start out empty.
func NewXMLLayer(dir string, logger *zap.Logger) (*XMLLayer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &XMLLayer{dir: dir, logger: logger}
	if err := l.load(); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidationLayer, err, "load validation policy from %s", dir)
	}
	return l, nil
}

func (l *XMLLayer) load() error {
	var elemDoc xmlElementsDoc
	if err := readXML(filepath.Join(l.dir, ElementsFile), &elemDoc); err != nil {
		return err
	}
	for _, e := range elemDoc.Elements {
		l.elements = append(l.elements, models.Element{ID: e.ID, Name: e.Name, Description: e.Description, DCElement: e.DCElement})
	}

	var mapDoc xmlTypeMapDoc
	if err := readXML(filepath.Join(l.dir, TypeMapFile), &mapDoc); err != nil {
		return err
	}
	for _, t := range mapDoc.Types {
		entry := typeEntry{id: t.ID, parent: t.Parent}
		for _, ref := range t.Elements {
			entry.elements = append(entry.elements, ref.ID)
		}
		l.types = append(l.types, entry)
	}
	l.logger.Sugar().Infow("validation policy loaded", "dir", l.dir, "elements", len(l.elements), "types", len(l.types))
	return nil
}

func readXML(path string, dest interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := xml.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// AddElement appends elem, generating an id when empty.
func (l *XMLLayer) AddElement(ctx context.Context, elem *models.Element) error {
	if elem == nil || elem.Name == "" {
		return appErrors.Clone(appErrors.ErrValidation, "element name required")
	}
	if elem.ID == "" {
		elem.ID = uuid.NewString()
	}
	return l.mutate(true, false, func() error {
		for _, e := range l.elements {
			if e.ID == elem.ID || e.Name == elem.Name {
				return appErrors.Clonef(appErrors.ErrConflict, "element %s already exists", elem.Name)
			}
		}
		l.elements = append(l.elements, *elem)
		return nil
	})
}

// ModifyElement replaces the element with elem.ID.
func (l *XMLLayer) ModifyElement(ctx context.Context, elem *models.Element) error {
	if err := requireElement(elem); err != nil {
		return err
	}
	return l.mutate(true, false, func() error {
		i := l.elementIndex(elem.ID)
		if i < 0 {
			return elementNotFound("id", elem.ID)
		}
		l.elements[i] = *elem
		return nil
	})
}

// RemoveElement deletes elem and every mapping to it.
func (l *XMLLayer) RemoveElement(ctx context.Context, elem *models.Element) error {
	if err := requireElement(elem); err != nil {
		return err
	}
	return l.mutate(true, true, func() error {
		i := l.elementIndex(elem.ID)
		if i < 0 {
			return elementNotFound("id", elem.ID)
		}
		l.elements = append(l.elements[:i], l.elements[i+1:]...)
		for t := range l.types {
			l.types[t].elements = without(l.types[t].elements, elem.ID)
		}
		return nil
	})
}

// AddElementToProductType maps elem onto typ once.
func (l *XMLLayer) AddElementToProductType(ctx context.Context, typ *models.ProductType, elem *models.Element) error {
	if err := requireType(typ); err != nil {
		return err
	}
	if err := requireElement(elem); err != nil {
		return err
	}
	return l.mutate(false, true, func() error {
		entry := l.typeEntry(typ.ID, true)
		for _, id := range entry.elements {
			if id == elem.ID {
				return nil
			}
		}
		entry.elements = append(entry.elements, elem.ID)
		return nil
	})
}

// RemoveElementFromProductType unmaps elem from typ.
func (l *XMLLayer) RemoveElementFromProductType(ctx context.Context, typ *models.ProductType, elem *models.Element) error {
	if err := requireType(typ); err != nil {
		return err
	}
	if err := requireElement(elem); err != nil {
		return err
	}
	return l.mutate(false, true, func() error {
		if entry := l.typeEntry(typ.ID, false); entry != nil {
			entry.elements = without(entry.elements, elem.ID)
		}
		return nil
	})
}

// AddParentForProductType sets typ's parent.
func (l *XMLLayer) AddParentForProductType(ctx context.Context, typ *models.ProductType, parentID string) error {
	if err := requireType(typ); err != nil {
		return err
	}
	if parentID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "parent product type id required")
	}
	return l.mutate(false, true, func() error {
		l.typeEntry(typ.ID, true).parent = parentID
		return nil
	})
}

// RemoveParentForProductType clears typ's parent when it equals parentID.
func (l *XMLLayer) RemoveParentForProductType(ctx context.Context, typ *models.ProductType, parentID string) error {
	if err := requireType(typ); err != nil {
		return err
	}
	return l.mutate(false, true, func() error {
		if entry := l.typeEntry(typ.ID, false); entry != nil && entry.parent == parentID {
			entry.parent = ""
		}
		return nil
	})
}

// GetParent returns typ's parent id or "".
func (l *XMLLayer) GetParent(ctx context.Context, typ *models.ProductType) (string, error) {
	if err := requireType(typ); err != nil {
		return "", err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.parentOf(ctx, typ.ID)
}

// GetElements resolves typ's elements, walking parents unless direct.
func (l *XMLLayer) GetElements(ctx context.Context, typ *models.ProductType, direct bool) ([]models.Element, error) {
	if err := requireType(typ); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return collectElements(ctx, l, typ.ID, direct)
}

// ListElements returns every element in document order.
func (l *XMLLayer) ListElements(ctx context.Context) ([]models.Element, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Element(nil), l.elements...), nil
}

// GetElementByID looks up an element by id.
func (l *XMLLayer) GetElementByID(ctx context.Context, id string) (*models.Element, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i := l.elementIndex(id); i >= 0 {
		elem := l.elements[i]
		return &elem, nil
	}
	return nil, elementNotFound("id", id)
}

// GetElementByName looks up an element by name.
func (l *XMLLayer) GetElementByName(ctx context.Context, name string) (*models.Element, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.elements {
		if e.Name == name {
			elem := e
			return &elem, nil
		}
	}
	return nil, elementNotFound("name", name)
}

func (l *XMLLayer) directElements(ctx context.Context, typeID string) ([]models.Element, error) {
	entry := l.typeEntry(typeID, false)
	if entry == nil {
		return nil, nil
	}
	elems := make([]models.Element, 0, len(entry.elements))
	for _, id := range entry.elements {
		i := l.elementIndex(id)
		if i < 0 {
			l.logger.Sugar().Warnw("product type maps unknown element", "product_type_id", typeID, "element_id", id)
			continue
		}
		elems = append(elems, l.elements[i])
	}
	return elems, nil
}

func (l *XMLLayer) parentOf(ctx context.Context, typeID string) (string, error) {
	if entry := l.typeEntry(typeID, false); entry != nil {
		return entry.parent, nil
	}
	return "", nil
}

func (l *XMLLayer) elementIndex(id string) int {
	for i, e := range l.elements {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (l *XMLLayer) typeEntry(id string, create bool) *typeEntry {
	for i := range l.types {
		if l.types[i].id == id {
			return &l.types[i]
		}
	}
	if !create {
		return nil
	}
	l.types = append(l.types, typeEntry{id: id})
	return &l.types[len(l.types)-1]
}

// mutate applies fn under the write lock and persists the touched documents.
func (l *XMLLayer) mutate(saveElements, saveTypes bool, fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prevElements := append([]models.Element(nil), l.elements...)
	prevTypes := cloneTypes(l.types)
	restore := func() {
		l.elements = prevElements
		l.types = prevTypes
	}

	if err := fn(); err != nil {
		restore()
		return err
	}
	if saveElements {
		if err := l.writeElements(); err != nil {
			restore()
			return appErrors.WrapAs(appErrors.ErrValidationLayer, err, "write %s", ElementsFile)
		}
	}
	if saveTypes {
		if err := l.writeTypes(); err != nil {
			restore()
			return appErrors.WrapAs(appErrors.ErrValidationLayer, err, "write %s", TypeMapFile)
		}
	}
	return nil
}

func (l *XMLLayer) writeElements() error {
	doc := xmlElementsDoc{XMLName: xml.Name{Local: "cas:elements"}, NS: casNamespace}
	for _, e := range l.elements {
		doc.Elements = append(doc.Elements, xmlElement{ID: e.ID, Name: e.Name, Description: e.Description, DCElement: e.DCElement})
	}
	return writeXML(filepath.Join(l.dir, ElementsFile), doc)
}

func (l *XMLLayer) writeTypes() error {
	doc := xmlTypeMapDoc{XMLName: xml.Name{Local: "cas:producttypemap"}, NS: casNamespace}
	for _, t := range l.types {
		xt := xmlType{ID: t.id, Parent: t.parent}
		for _, id := range t.elements {
			xt.Elements = append(xt.Elements, xmlElemRef{ID: id})
		}
		doc.Types = append(doc.Types, xt)
	}
	return writeXML(filepath.Join(l.dir, TypeMapFile), doc)
}

func writeXML(path string, doc interface{}) error {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	data := append([]byte(xml.Header), body...)
	data = append(data, '\n')
	return storage.WriteFileAtomic(path, data, 0o644)
}

func cloneTypes(in []typeEntry) []typeEntry {
	out := make([]typeEntry, len(in))
	for i, t := range in {
		out[i] = typeEntry{id: t.id, parent: t.parent, elements: append([]string(nil), t.elements...)}
	}
	return out
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
