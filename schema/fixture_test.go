package schema_test

import (
	"time"

	"github.com/docent-go/docent/schema"
)

// The movie catalog exercised across the package tests: scalars, enums,
// defaults, nullable and optional fields, an embedded document, a sequence
// of embedded documents and an opaque-keyed mapping.

type Rated string

const (
	RatedG       Rated = "G"
	RatedPG      Rated = "PG"
	RatedR       Rated = "R"
	RatedUnrated Rated = "unrated"
)

type Rating struct {
	Source string
	Score  float64
}

type Actor struct {
	Name string
	Born int32
}

type Movie struct {
	ID       string
	Title    string
	Year     int32
	Runtime  *int32
	Rated    Rated
	Genres   []string
	Released time.Time
	Gross    float64
	Lead     Actor
	Cast     []Actor
	Ratings  map[string]Rating
	Poster   []byte
	Views    int64
	Note     string
}

var ratingBuilder = schema.NewEmbedded[Rating]("rating")

var (
	ratingSource = schema.String(ratingBuilder, "source", func(r *Rating) *string { return &r.Source })
	ratingScore  = schema.Double(ratingBuilder, "score", func(r *Rating) *float64 { return &r.Score })

	ratingType = ratingBuilder.MustBuild()
)

var actorBuilder = schema.NewEmbedded[Actor]("actor")

var (
	actorName = schema.String(actorBuilder, "name", func(a *Actor) *string { return &a.Name })
	actorBorn = schema.Int32(actorBuilder, "born", func(a *Actor) *int32 { return &a.Born })

	actorType = actorBuilder.MustBuild()
)

var movieBuilder = schema.NewRoot[Movie]("movie")

var (
	movieID      = movieBuilder.ID(func(m *Movie) *string { return &m.ID })
	movieTitle   = schema.String(movieBuilder, "title", func(m *Movie) *string { return &m.Title })
	movieYear    = schema.Int32(movieBuilder, "year", func(m *Movie) *int32 { return &m.Year })
	movieRuntime = schema.NullInt32(movieBuilder, "runtime", func(m *Movie) **int32 { return &m.Runtime })
	movieRated   = schema.Enum(movieBuilder, "rated", func(m *Movie) *Rated { return &m.Rated },
		schema.Default(RatedUnrated))
	movieGenres = schema.Strings(movieBuilder, "genres", func(m *Movie) *[]string { return &m.Genres },
		schema.Optional[[]string]())
	movieReleased = schema.Date(movieBuilder, "released", func(m *Movie) *time.Time { return &m.Released })
	movieGross    = schema.Double(movieBuilder, "gross", func(m *Movie) *float64 { return &m.Gross })
	movieLead     = schema.Embedded(movieBuilder, "lead", actorType, func(m *Movie) *Actor { return &m.Lead })
	movieCast     = schema.EmbeddedList(movieBuilder, "cast", actorType, func(m *Movie) *[]Actor { return &m.Cast },
		schema.Optional[[]Actor]())
	movieRatings = schema.EmbeddedMap(movieBuilder, "ratings", ratingType, func(m *Movie) *map[string]Rating { return &m.Ratings },
		schema.Optional[map[string]Rating]())
	moviePoster = schema.Binary(movieBuilder, "poster", func(m *Movie) *[]byte { return &m.Poster },
		schema.Optional[[]byte]())
	movieViews = schema.Int64(movieBuilder, "views", func(m *Movie) *int64 { return &m.Views })
	movieNote  = schema.String(movieBuilder, "note", func(m *Movie) *string { return &m.Note },
		schema.Transient[string]())

	movieType = movieBuilder.MustBuild()
)

// Joined paths shared by the path and query tests.
var (
	movieLeadName  = schema.Join(movieLead, actorName)
	movieCastName  = schema.Join(schema.Elem(movieCast), actorName)
	movieCastBorn  = schema.Join(schema.Elem(movieCast), actorBorn)
	movieImdbScore = schema.Join(schema.Key(movieRatings, "imdb"), ratingScore)
)
