package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	store "github.com/simonaseno/nhanes/internal/adapters/store"
	table "github.com/simonaseno/nhanes/internal/domain/table"
	"github.com/simonaseno/nhanes/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	logger.Init()
}

func sampleTable() *table.Table {
	tbl, err := table.New(
		table.Column{Name: "SEQN", Kind: table.KindNumeric, Cells: []table.Value{
			table.Num(1), table.Num(2), table.Num(3),
		}},
		table.Column{Name: "LBXTC", Kind: table.KindNumeric, Cells: []table.Value{
			table.Num(150), table.Null(), table.Num(188.5),
		}},
		table.Column{Name: "Cycle", Kind: table.KindString, Cells: []table.Value{
			table.Str("1999-2000"), table.Str("1999-2000"), table.Str("2001-2002"),
		}},
	)
	if err != nil {
		panic(err)
	}
	return tbl
}

func TestFileStore_PersistAndLoad(t *testing.T) {
	convey.Convey("Given a file store and an assembled table", t, func() {
		s := store.NewFileStore()
		ctx := context.Background()
		base := filepath.Join(t.TempDir(), "lab_combined")

		convey.Convey("When persisting the table", func() {
			a, err := s.Persist(ctx, sampleTable(), base)

			convey.Convey("Then both artifact files should exist", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(a.Binary, convey.ShouldEqual, base+".db")
				convey.So(a.Text, convey.ShouldEqual, base+".csv")
				convey.So(a.Rows, convey.ShouldEqual, 3)

				_, err = os.Stat(a.Binary)
				convey.So(err, convey.ShouldBeNil)
				_, err = os.Stat(a.Text)
				convey.So(err, convey.ShouldBeNil)
			})

			convey.Convey("And no staging files should remain", func() {
				leftovers, globErr := filepath.Glob(filepath.Join(filepath.Dir(base), "*.partial"))
				convey.So(globErr, convey.ShouldBeNil)
				convey.So(leftovers, convey.ShouldBeEmpty)
			})

			convey.Convey("And loading it back should reproduce the table", func() {
				got, loadErr := s.Load(ctx, base)
				convey.So(loadErr, convey.ShouldBeNil)

				convey.So(got.NumRows(), convey.ShouldEqual, 3)
				convey.So(got.Names(), convey.ShouldResemble, []string{"SEQN", "LBXTC", "Cycle"})

				convey.So(got.Cell(0, "SEQN"), convey.ShouldResemble, table.Num(1))
				convey.So(got.Cell(2, "SEQN"), convey.ShouldResemble, table.Num(3))
				convey.So(got.Cell(0, "LBXTC"), convey.ShouldResemble, table.Num(150))
				convey.So(got.Cell(1, "LBXTC"), convey.ShouldResemble, table.Null())
				convey.So(got.Cell(2, "LBXTC"), convey.ShouldResemble, table.Num(188.5))
				convey.So(got.Cell(2, "Cycle"), convey.ShouldResemble, table.Str("2001-2002"))

				seqn, found := got.Column("SEQN")
				convey.So(found, convey.ShouldBeTrue)
				convey.So(seqn.Kind, convey.ShouldEqual, table.KindNumeric)
				cycle, found := got.Column("Cycle")
				convey.So(found, convey.ShouldBeTrue)
				convey.So(cycle.Kind, convey.ShouldEqual, table.KindString)
			})
		})

		convey.Convey("When persisting over an earlier snapshot", func() {
			_, err := s.Persist(ctx, sampleTable(), base)
			convey.So(err, convey.ShouldBeNil)

			smaller, err := table.New(
				table.Column{Name: "SEQN", Kind: table.KindNumeric, Cells: []table.Value{table.Num(9)}},
			)
			convey.So(err, convey.ShouldBeNil)

			_, err = s.Persist(ctx, smaller, base)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then loading should reflect the latest write", func() {
				got, loadErr := s.Load(ctx, base)
				convey.So(loadErr, convey.ShouldBeNil)
				convey.So(got.NumRows(), convey.ShouldEqual, 1)
				convey.So(got.Names(), convey.ShouldResemble, []string{"SEQN"})
				convey.So(got.Cell(0, "SEQN"), convey.ShouldResemble, table.Num(9))
			})
		})
	})
}

func TestFileStore_TextArtifact(t *testing.T) {
	convey.Convey("Given a persisted table", t, func() {
		s := store.NewFileStore()
		ctx := context.Background()
		base := filepath.Join(t.TempDir(), "lab_combined")

		a, err := s.Persist(ctx, sampleTable(), base)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then the text artifact should render nulls as empty fields", func() {
			content, readErr := os.ReadFile(a.Text)
			convey.So(readErr, convey.ShouldBeNil)

			want := "SEQN,LBXTC,Cycle\n" +
				"1,150,1999-2000\n" +
				"2,,1999-2000\n" +
				"3,188.5,2001-2002\n"
			convey.So(string(content), convey.ShouldEqual, want)
		})
	})
}

func TestFileStore_DegenerateTables(t *testing.T) {
	convey.Convey("Given a file store", t, func() {
		s := store.NewFileStore()
		ctx := context.Background()

		convey.Convey("When persisting a table with no columns", func() {
			base := filepath.Join(t.TempDir(), "merged")
			empty, err := table.New()
			convey.So(err, convey.ShouldBeNil)

			a, err := s.Persist(ctx, empty, base)
			convey.So(err, convey.ShouldBeNil)
			convey.So(a.Rows, convey.ShouldEqual, 0)

			convey.Convey("Then the text artifact should be empty", func() {
				info, statErr := os.Stat(a.Text)
				convey.So(statErr, convey.ShouldBeNil)
				convey.So(info.Size(), convey.ShouldEqual, 0)
			})

			convey.Convey("And loading should return a column-less table", func() {
				got, loadErr := s.Load(ctx, base)
				convey.So(loadErr, convey.ShouldBeNil)
				convey.So(got.NumCols(), convey.ShouldEqual, 0)
				convey.So(got.NumRows(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When persisting a table with columns but no rows", func() {
			base := filepath.Join(t.TempDir(), "demo_combined")
			headerOnly, err := table.New(
				table.Column{Name: "SEQN", Kind: table.KindNumeric},
				table.Column{Name: "RIAGENDR", Kind: table.KindNumeric},
			)
			convey.So(err, convey.ShouldBeNil)

			_, err = s.Persist(ctx, headerOnly, base)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then loading should recover the schema", func() {
				got, loadErr := s.Load(ctx, base)
				convey.So(loadErr, convey.ShouldBeNil)
				convey.So(got.Names(), convey.ShouldResemble, []string{"SEQN", "RIAGENDR"})
				convey.So(got.NumRows(), convey.ShouldEqual, 0)
			})
		})
	})
}

func TestFileStore_MissingArtifact(t *testing.T) {
	convey.Convey("Given a base that was never persisted", t, func() {
		s := store.NewFileStore()
		ctx := context.Background()
		base := filepath.Join(t.TempDir(), "never_written")

		convey.Convey("When loading it", func() {
			_, err := s.Load(ctx, base)

			convey.Convey("Then a missing-artifact error should be returned", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, store.ErrNoArtifact), convey.ShouldBeTrue)
			})
		})
	})
}
