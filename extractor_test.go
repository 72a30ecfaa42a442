package gotham

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type itemPath struct {
	ID   int32  `path:"id"`
	Slug string `path:"slug" validate:"min=2"`
}

type searchQuery struct {
	Q     string   `query:"q"`
	Limit *uint    `query:"limit"`
	Tags  []string `query:"tags"`
	Skip  string   `query:"-"`
}

func TestPathExtractor_Decode(t *testing.T) {
	e := newStructExtractor[itemPath](sourcePath, nil)

	v, err := e.decode(SegmentMapping{"id": {"123"}, "slug": {"shoes"}})
	require.NoError(t, err)
	assert.Equal(t, itemPath{ID: 123, Slug: "shoes"}, *v)

	// 参数名不区分大小写
	v, err = e.decode(SegmentMapping{"ID": {"7"}, "Slug": {"ab"}})
	require.NoError(t, err)
	assert.Equal(t, int32(7), v.ID)

	_, err = e.decode(SegmentMapping{"slug": {"shoes"}})
	var ee *ExtractionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "path", ee.Source)
	assert.ErrorIs(t, ee.Fields["id"], ErrMissingValue)

	_, err = e.decode(SegmentMapping{"id": {"1", "2"}, "slug": {"shoes"}})
	require.ErrorAs(t, err, &ee)
	assert.ErrorIs(t, ee.Fields["id"], ErrTooManyValues)

	_, err = e.decode(SegmentMapping{"id": {"x"}, "slug": {"shoes"}})
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, ee.Fields, "id")

	_, err = e.decode(SegmentMapping{"id": {"99999999999"}, "slug": {"shoes"}})
	assert.Error(t, err, "int32 overflow")

	_, err = e.decode(SegmentMapping{"id": {"1"}, "slug": {"s"}})
	require.ErrorAs(t, err, &ee)
	assert.EqualError(t, ee.Fields["Slug"], `failed on the "min" rule`)
	assert.True(t, strings.HasPrefix(ee.Error(), "gotham: invalid path data ("))
}

func TestQueryExtractor_Decode(t *testing.T) {
	e := newStructExtractor[searchQuery](sourceQuery, nil)

	v, err := e.decode(ParseQuery("q=go+lang&limit=10&tags=a&tags=b&Skip=x"))
	require.NoError(t, err)
	assert.Equal(t, "go lang", v.Q)
	require.NotNil(t, v.Limit)
	assert.Equal(t, uint(10), *v.Limit)
	assert.Equal(t, []string{"a", "b"}, v.Tags)
	assert.Empty(t, v.Skip)

	v, err = e.decode(ParseQuery("q=x"))
	require.NoError(t, err)
	assert.Nil(t, v.Limit)
	assert.Nil(t, v.Tags)

	_, err = e.decode(ParseQuery("limit=1"))
	var ee *ExtractionError
	require.ErrorAs(t, err, &ee)
	assert.ErrorIs(t, ee.Fields["q"], ErrMissingValue)

	_, err = e.decode(ParseQuery("q=x&limit=-1"))
	assert.Error(t, err)

	// 空字符串只对字符串字段有效
	v, err = e.decode(ParseQuery("q="))
	require.NoError(t, err)
	assert.Equal(t, "", v.Q)

	_, err = e.decode(ParseQuery("q=x&limit="))
	require.ErrorAs(t, err, &ee)
	assert.ErrorIs(t, ee.Fields["limit"], ErrEmptyValue)
}

func TestPlanFields_EmptyValues(t *testing.T) {
	type target struct {
		N    int
		B    bool
		S    string
		PS   *string
		PN   *int
		Time time.Time
	}
	want := map[string]bool{"N": false, "B": false, "S": true, "PS": true, "PN": false, "Time": true}
	for _, p := range planFields(reflect.TypeFor[target](), sourceQuery) {
		assert.Equal(t, want[p.key], p.emptyOK, p.key)
	}
}

func TestExtractor_Options(t *testing.T) {
	var responded error
	strict := validator.New()
	_ = strict.RegisterValidation("never", func(validator.FieldLevel) bool { return false })
	type tagged struct {
		Name string `path:"name" validate:"never"`
	}

	r := testRouter(t, RouterConfig{}, func(b *Builder) {
		b.GET("/a/:name").
			WithPathExtractor(NewPathExtractor[tagged](
				WithValidator(strict),
				WithErrorResponder(func(c Context, err error) {
					responded = err
					_ = c.String(http.StatusTeapot, "custom")
				}),
			)).
			To(func(c Context) error { return nil })
		b.GET("/b/:name").
			WithPathExtractor(NewPathExtractor[tagged](WithValidator(nil))).
			To(func(c Context) error {
				p := MustBorrow[pathData[tagged]](c)
				return c.String(http.StatusOK, p.v.Name)
			})
	})

	rec := serve(r, http.MethodGet, "/a/x")
	assert.Equal(t, http.StatusTeapot, rec.Code)
	var ee *ExtractionError
	assert.True(t, errors.As(responded, &ee))

	rec = serve(r, http.MethodGet, "/b/x")
	assert.Equal(t, "x", rec.Body.String())
}

func TestNewPathExtractor_NonStructPanics(t *testing.T) {
	assert.Panics(t, func() { NewPathExtractor[string]() })
}
