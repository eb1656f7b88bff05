package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/roamly/tour-booking/internal/apperror"
	"github.com/roamly/tour-booking/internal/query"
)

// TransformStage is one named step applied to a bound document before it is
// written. Stages run in order and short-circuit on the first error; they
// replace hidden save hooks with an explicit pipeline.
type TransformStage[T any] struct {
	Name  string
	Apply func(echo.Context, *T) error
}

// Descriptor parameterizes the generic CRUD handlers for one resource. The
// five operations below cover create, read-one, read-many, update and
// delete; anything resource-specific plugs in through the hooks.
type Descriptor[T any] struct {
	Coll         *mongo.Collection
	BaseFilter   bson.M             // always applied, e.g. hide secret tours
	Hidden       []string           // excluded from default list projections
	UpdateFields FieldSet           // allow-list for partial updates
	ParentParam  string             // path param of the owning resource on nested routes
	ParentField  string             // document field holding the parent reference
	PreCreate    []TransformStage[T] // run before PreSave on inserts only
	PreSave      []TransformStage[T]
	PostWrite    func(context.Context, *T) error // after create/update, e.g. rating sync
	PostDelete   func(context.Context, *T) error
	Populate     func(context.Context, *T) error         // read-one population
	PopulateMany func(context.Context, []T) error        // read-many population
}

// CreateOne validates and inserts the request body, responding 201 with the
// created document.
func CreateOne[T any](d *Descriptor[T]) echo.HandlerFunc {
	return func(c echo.Context) error {
		doc := new(T)
		if err := c.Bind(doc); err != nil {
			return apperror.BadRequest("invalid request body")
		}
		if err := runStages(c, d.PreCreate, doc); err != nil {
			return err
		}
		if err := runStages(c, d.PreSave, doc); err != nil {
			return err
		}
		if err := c.Validate(doc); err != nil {
			return err
		}
		ctx := c.Request().Context()
		res, err := d.Coll.InsertOne(ctx, doc)
		if err != nil {
			return err
		}
		if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
			setDocumentID(doc, oid)
		}
		if d.PostWrite != nil {
			if err := d.PostWrite(ctx, doc); err != nil {
				return err
			}
		}
		derive(doc)
		return respondData(c, http.StatusCreated, doc)
	}
}

// GetOne fetches a document by identifier, optionally populating related
// entities.
func GetOne[T any](d *Descriptor[T]) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseObjectID(c.Param("id"))
		if err != nil {
			return err
		}
		ctx := c.Request().Context()
		doc := new(T)
		if err := d.Coll.FindOne(ctx, d.filterByID(id)).Decode(doc); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return apperror.NotFound("no document found with that ID")
			}
			return err
		}
		if d.Populate != nil {
			if err := d.Populate(ctx, doc); err != nil {
				return err
			}
		}
		derive(doc)
		return respondData(c, http.StatusOK, doc)
	}
}

// GetAll runs the query-feature pipeline over the collection and responds
// with the result count and array. On nested routes the result set is
// pre-filtered by the parent identifier.
func GetAll[T any](d *Descriptor[T]) echo.HandlerFunc {
	return func(c echo.Context) error {
		f, err := query.Build(c.QueryParams())
		if err != nil {
			return apperror.BadRequest(err.Error())
		}
		f.Exclude(d.Hidden...)
		for k, v := range d.BaseFilter {
			f.Filter[k] = v
		}
		if d.ParentParam != "" {
			if raw := c.Param(d.ParentParam); raw != "" {
				parentID, err := parseObjectID(raw)
				if err != nil {
					return err
				}
				f.Filter[d.ParentField] = parentID
			}
		}
		ctx := c.Request().Context()
		cur, err := d.Coll.Find(ctx, f.Filter, f.FindOptions())
		if err != nil {
			return err
		}
		defer cur.Close(ctx)
		docs := []T{}
		if err := cur.All(ctx, &docs); err != nil {
			return err
		}
		if d.PopulateMany != nil {
			if err := d.PopulateMany(ctx, docs); err != nil {
				return err
			}
		}
		for i := range docs {
			derive(&docs[i])
		}
		return respondList(c, docs, len(docs))
	}
}

// UpdateOne applies a partial update by identifier. The stored document is
// fetched, the allow-listed body fields are merged in, validation re-runs
// over the whole document and the result replaces the original.
func UpdateOne[T any](d *Descriptor[T]) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseObjectID(c.Param("id"))
		if err != nil {
			return err
		}
		ctx := c.Request().Context()
		doc := new(T)
		if err := d.Coll.FindOne(ctx, d.filterByID(id)).Decode(doc); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return apperror.NotFound("no document found with that ID")
			}
			return err
		}

		var body map[string]json.RawMessage
		if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
			return apperror.BadRequest("invalid request body")
		}
		merged, err := json.Marshal(d.UpdateFields.Filter(body))
		if err != nil {
			return apperror.Internal(err)
		}
		if err := json.Unmarshal(merged, doc); err != nil {
			return apperror.BadRequest("invalid request body")
		}

		if err := runStages(c, d.PreSave, doc); err != nil {
			return err
		}
		if err := c.Validate(doc); err != nil {
			return err
		}
		if _, err := d.Coll.ReplaceOne(ctx, bson.M{"_id": id}, doc); err != nil {
			return err
		}
		if d.PostWrite != nil {
			if err := d.PostWrite(ctx, doc); err != nil {
				return err
			}
		}
		derive(doc)
		return respondData(c, http.StatusOK, doc)
	}
}

// DeleteOne removes a document by identifier. The deleted document is
// decoded so post-delete hooks (e.g. rating recompute) still see it; the
// success response carries no body.
func DeleteOne[T any](d *Descriptor[T]) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseObjectID(c.Param("id"))
		if err != nil {
			return err
		}
		ctx := c.Request().Context()
		doc := new(T)
		if err := d.Coll.FindOneAndDelete(ctx, d.filterByID(id)).Decode(doc); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return apperror.NotFound("no document found with that ID")
			}
			return err
		}
		if d.PostDelete != nil {
			if err := d.PostDelete(ctx, doc); err != nil {
				return err
			}
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func (d *Descriptor[T]) filterByID(id primitive.ObjectID) bson.M {
	filter := bson.M{"_id": id}
	for k, v := range d.BaseFilter {
		filter[k] = v
	}
	return filter
}

func runStages[T any](c echo.Context, stages []TransformStage[T], doc *T) error {
	for _, st := range stages {
		if err := st.Apply(c, doc); err != nil {
			return err
		}
	}
	return nil
}

// parseObjectID converts a path parameter to an ObjectID, rejecting
// malformed identifiers before they reach the driver.
func parseObjectID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperror.BadRequest("invalid id: " + raw)
	}
	return id, nil
}

// derive lets models compute output-only fields after a read or write.
func derive(doc any) {
	if d, ok := doc.(interface{ Derive() }); ok {
		d.Derive()
	}
}

// setDocumentID writes the generated ObjectID back onto the inserted
// document's ID field so the create response includes it.
func setDocumentID(doc any, id primitive.ObjectID) {
	v := reflect.ValueOf(doc).Elem()
	field := v.FieldByName("ID")
	if field.IsValid() && field.CanSet() && field.Type() == reflect.TypeOf(id) {
		field.Set(reflect.ValueOf(id))
	}
}
