package join_test

import (
	"errors"
	"math"
	"testing"

	join "github.com/simonaseno/nhanes/internal/domain/join"
	table "github.com/simonaseno/nhanes/internal/domain/table"
	. "github.com/smartystreets/goconvey/convey"
)

func mustTable(t *testing.T, cols ...table.Column) *table.Table {
	t.Helper()
	tbl, err := table.New(cols...)
	if err != nil {
		t.Fatalf("building table: %v", err)
	}
	return tbl
}

func numCol(name string, vals ...float64) table.Column {
	cells := make([]table.Value, len(vals))
	for i, v := range vals {
		cells[i] = table.Num(v)
	}
	return table.Column{Name: name, Kind: table.KindNumeric, Cells: cells}
}

func strCol(name string, vals ...string) table.Column {
	cells := make([]table.Value, len(vals))
	for i, v := range vals {
		cells[i] = table.Str(v)
	}
	return table.Column{Name: name, Kind: table.KindString, Cells: cells}
}

func TestInner(t *testing.T) {
	Convey("Given lab and demo tables sharing a participant key", t, func() {
		lab := mustTable(t,
			numCol("SEQN", 1, 2, 3, 4),
			numCol("LBXTC", 180, 195, 210, 176),
			strCol("Cycle", "1999-2000", "1999-2000", "2001-2002", "2001-2002"),
		)
		demo := mustTable(t,
			numCol("SEQN", 2, 3, 5),
			numCol("RIDAGEYR", 34, 61, 12),
			strCol("Cycle", "1999-2000", "2001-2002", "2001-2002"),
		)

		Convey("When joining on SEQN", func() {
			out, err := join.Inner(lab, demo, "SEQN", join.WithRightSuffix("_demo"))

			So(err, ShouldBeNil)

			Convey("Then only keys present on both sides should survive", func() {
				So(out.NumRows(), ShouldEqual, 2)
				So(out.Cell(0, "SEQN"), ShouldResemble, table.Num(2))
				So(out.Cell(1, "SEQN"), ShouldResemble, table.Num(3))
			})

			Convey("Then output rows should follow left-table order", func() {
				So(out.Cell(0, "LBXTC"), ShouldResemble, table.Num(195))
				So(out.Cell(1, "LBXTC"), ShouldResemble, table.Num(210))
			})

			Convey("Then non-key right columns should come along", func() {
				So(out.Cell(0, "RIDAGEYR"), ShouldResemble, table.Num(34))
				So(out.Cell(1, "RIDAGEYR"), ShouldResemble, table.Num(61))
			})

			Convey("Then colliding names should carry the configured suffix", func() {
				So(out.Has("Cycle"), ShouldBeTrue)
				So(out.Has("Cycle_demo"), ShouldBeTrue)
				So(out.Cell(1, "Cycle"), ShouldResemble, table.Str("2001-2002"))
				So(out.Cell(1, "Cycle_demo"), ShouldResemble, table.Str("2001-2002"))
			})

			Convey("Then the key column should appear exactly once", func() {
				seen := 0
				for _, name := range out.Names() {
					if name == "SEQN" || name == "SEQN_demo" {
						seen++
					}
				}
				So(seen, ShouldEqual, 1)
			})
		})

		Convey("When no keys overlap", func() {
			strangers := mustTable(t, numCol("SEQN", 8, 9), numCol("RIDAGEYR", 40, 41))
			out, err := join.Inner(lab, strangers, "SEQN")

			Convey("Then the result should be empty, not an error", func() {
				So(err, ShouldBeNil)
				So(out.NumRows(), ShouldEqual, 0)
				So(out.NumCols(), ShouldEqual, lab.NumCols()+strangers.NumCols()-1)
			})
		})
	})

	Convey("Given key edge cases", t, func() {
		Convey("When keys repeat on the right", func() {
			left := mustTable(t, numCol("SEQN", 1, 2), strCol("Side", "L1", "L2"))
			right := mustTable(t, numCol("SEQN", 2, 2), strCol("Tag", "first", "second"))

			out, err := join.Inner(left, right, "SEQN")

			Convey("Then matches should multiply in right order", func() {
				So(err, ShouldBeNil)
				So(out.NumRows(), ShouldEqual, 2)
				So(out.Cell(0, "Tag"), ShouldResemble, table.Str("first"))
				So(out.Cell(1, "Tag"), ShouldResemble, table.Str("second"))
				So(out.Cell(0, "Side"), ShouldResemble, table.Str("L2"))
			})
		})

		Convey("When keys are null on either side", func() {
			left := mustTable(t, table.Column{
				Name:  "SEQN",
				Kind:  table.KindNumeric,
				Cells: []table.Value{table.Num(1), table.Null()},
			})
			right := mustTable(t, table.Column{
				Name:  "SEQN",
				Kind:  table.KindNumeric,
				Cells: []table.Value{table.Null(), table.Num(1)},
			})

			out, err := join.Inner(left, right, "SEQN")

			Convey("Then null keys should never match each other", func() {
				So(err, ShouldBeNil)
				So(out.NumRows(), ShouldEqual, 1)
				So(out.Cell(0, "SEQN"), ShouldResemble, table.Num(1))
			})
		})

		Convey("When keys are NaN", func() {
			left := mustTable(t, numCol("SEQN", math.NaN(), 3))
			right := mustTable(t, numCol("SEQN", math.NaN(), 3))

			out, err := join.Inner(left, right, "SEQN")

			Convey("Then NaN should not even match itself", func() {
				So(err, ShouldBeNil)
				So(out.NumRows(), ShouldEqual, 1)
			})
		})

		Convey("When string and numeric keys look alike", func() {
			left := mustTable(t, numCol("SEQN", 7))
			right := mustTable(t, strCol("SEQN", "7"))

			out, err := join.Inner(left, right, "SEQN")

			Convey("Then kinds should not cross-match", func() {
				So(err, ShouldBeNil)
				So(out.NumRows(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given bad join arguments", t, func() {
		tbl := mustTable(t, numCol("SEQN", 1))

		Convey("When the key name is empty", func() {
			_, err := join.Inner(tbl, tbl, "")

			So(errors.Is(err, join.ErrInvalidKey), ShouldBeTrue)
		})

		Convey("When the left table lacks the key", func() {
			noKey := mustTable(t, numCol("RIDAGEYR", 30))
			_, err := join.Inner(noKey, tbl, "SEQN")

			So(errors.Is(err, join.ErrKeyColumn), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "left")
		})

		Convey("When the right table lacks the key", func() {
			noKey := mustTable(t, numCol("RIDAGEYR", 30))
			_, err := join.Inner(tbl, noKey, "SEQN")

			So(errors.Is(err, join.ErrKeyColumn), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "right")
		})
	})
}
