package validation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/filemgr/internal/models"
	appErrors "github.com/noah-isme/filemgr/pkg/errors"
)

const sampleElements = `<?xml version="1.0" encoding="UTF-8"?>
<cas:elements xmlns:cas="http://oodt.jpl.nasa.gov/1.0/cas">
  <element id="urn:oodt:Filename" name="Filename">
    <description>name of the file</description>
    <dcElement>title</dcElement>
  </element>
  <element id="urn:oodt:ProductReceivedTime" name="ProductReceivedTime">
    <description>time of ingest</description>
    <dcElement/>
  </element>
  <element id="urn:oodt:Band" name="Band">
    <description/>
    <dcElement/>
  </element>
</cas:elements>
`

const sampleTypeMap = `<?xml version="1.0" encoding="UTF-8"?>
<cas:producttypemap xmlns:cas="http://oodt.jpl.nasa.gov/1.0/cas">
  <type id="urn:oodt:GenericFile">
    <element id="urn:oodt:Filename"/>
    <element id="urn:oodt:ProductReceivedTime"/>
  </type>
  <type id="urn:oodt:ImageFile" parent="urn:oodt:GenericFile">
    <element id="urn:oodt:Band"/>
  </type>
</cas:producttypemap>
`

func newSampleXMLLayer(t *testing.T) (*XMLLayer, string) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ElementsFile), []byte(sampleElements), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, TypeMapFile), []byte(sampleTypeMap), 0o644))
	layer, err := NewXMLLayer(dir, nil)
	require.NoError(t, err)
	return layer, dir
}

func TestXMLLayerLoadsPolicy(t *testing.T) {
	layer, _ := newSampleXMLLayer(t)
	ctx := context.Background()

	elems, err := layer.ListElements(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Filename", "ProductReceivedTime", "Band"}, models.ElementNames(elems))

	elem, err := layer.GetElementByName(ctx, "Filename")
	require.NoError(t, err)
	assert.Equal(t, "urn:oodt:Filename", elem.ID)
	assert.Equal(t, "title", elem.DCElement)
	assert.Equal(t, "name of the file", elem.Description)

	_, err = layer.GetElementByID(ctx, "urn:oodt:Nope")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestXMLLayerInheritedElements(t *testing.T) {
	layer, _ := newSampleXMLLayer(t)
	ctx := context.Background()
	image := &models.ProductType{ID: "urn:oodt:ImageFile"}

	direct, err := layer.GetElements(ctx, image, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Band"}, models.ElementNames(direct))

	all, err := layer.GetElements(ctx, image, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Band", "Filename", "ProductReceivedTime"}, models.ElementNames(all))

	parent, err := layer.GetParent(ctx, image)
	require.NoError(t, err)
	assert.Equal(t, "urn:oodt:GenericFile", parent)
}

func TestXMLLayerMutationsPersist(t *testing.T) {
	layer, dir := newSampleXMLLayer(t)
	ctx := context.Background()
	generic := &models.ProductType{ID: "urn:oodt:GenericFile"}

	elem := &models.Element{Name: "Checksum", Description: "md5"}
	require.NoError(t, layer.AddElement(ctx, elem))
	require.NotEmpty(t, elem.ID)
	require.NoError(t, layer.AddElementToProductType(ctx, generic, elem))
	require.NoError(t, layer.AddElementToProductType(ctx, generic, elem))

	reloaded, err := NewXMLLayer(dir, nil)
	require.NoError(t, err)
	elems, err := reloaded.GetElements(ctx, generic, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Filename", "ProductReceivedTime", "Checksum"}, models.ElementNames(elems))

	require.NoError(t, reloaded.RemoveElement(ctx, elem))
	elems, err = reloaded.GetElements(ctx, generic, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Filename", "ProductReceivedTime"}, models.ElementNames(elems))

	data, err := os.ReadFile(filepath.Join(dir, ElementsFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "<cas:elements")
	assert.NotContains(t, string(data), "Checksum")
}

func TestXMLLayerRejectsDuplicateElement(t *testing.T) {
	layer, _ := newSampleXMLLayer(t)

	err := layer.AddElement(context.Background(), &models.Element{Name: "Filename"})
	require.ErrorIs(t, err, appErrors.ErrConflict)

	elems, err := layer.ListElements(context.Background())
	require.NoError(t, err)
	assert.Len(t, elems, 3)
}

func TestXMLLayerDetectsCycle(t *testing.T) {
	layer, _ := newSampleXMLLayer(t)
	ctx := context.Background()
	generic := &models.ProductType{ID: "urn:oodt:GenericFile"}

	require.NoError(t, layer.AddParentForProductType(ctx, generic, "urn:oodt:ImageFile"))
	_, err := layer.GetElements(ctx, generic, false)
	require.ErrorIs(t, err, appErrors.ErrValidationLayer)

	require.NoError(t, layer.RemoveParentForProductType(ctx, generic, "urn:oodt:ImageFile"))
	elems, err := layer.GetElements(ctx, generic, false)
	require.NoError(t, err)
	assert.Len(t, elems, 2)
}

func TestXMLLayerRestoresStateWhenWriteFails(t *testing.T) {
	dir := t.TempDir()
	layer, err := NewXMLLayer(dir, nil)
	require.NoError(t, err)

	// A directory in place of the document makes the rename fail.
	require.NoError(t, os.Mkdir(filepath.Join(dir, ElementsFile), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ElementsFile, "keep"), []byte("x"), 0o644))

	err = layer.AddElement(context.Background(), &models.Element{Name: "Filename"})
	require.ErrorIs(t, err, appErrors.ErrValidationLayer)

	elems, err := layer.ListElements(context.Background())
	require.NoError(t, err)
	assert.Empty(t, elems)
}

func TestXMLLayerMissingFilesStartEmpty(t *testing.T) {
	layer, err := NewXMLLayer(t.TempDir(), nil)
	require.NoError(t, err)

	elems, err := layer.GetElements(context.Background(), &models.ProductType{ID: "any"}, false)
	require.NoError(t, err)
	assert.Empty(t, elems)
}
