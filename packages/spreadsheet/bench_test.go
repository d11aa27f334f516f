package spreadsheet

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/vogtb/go-spreadsheet/packages/config"
	"github.com/vogtb/go-spreadsheet/packages/ref"
)

func benchProject(rows, cols int) *Project {
	cfg := config.Default()
	cfg.Grid.Rows = rows
	cfg.Grid.Cols = cols
	return New(WithConfig(cfg))
}

func at(row, col int) string {
	return ref.NewCell("", row, col).String()
}

func must(b *testing.B, err error) {
	b.Helper()
	if err != nil {
		b.Fatal(err)
	}
}

func BenchmarkLargeCellPopulation(b *testing.B) {
	for i := 0; i < b.N; i++ {
		p := benchProject(100, 26)
		must(b, p.Batch(func() error {
			for row := 0; row < 100; row++ {
				for col := 0; col < 26; col++ {
					if err := p.SetInput(at(row, col), strconv.Itoa((row+1)*(col+1))); err != nil {
						return err
					}
				}
			}
			return nil
		}))
	}
}

func BenchmarkFormulaDependencyChain(b *testing.B) {
	p := benchProject(200, 4)
	must(b, p.SetInput("A1", "1"))
	for i := 1; i < 200; i++ {
		must(b, p.SetInput(at(i, 0), fmt.Sprintf("=A%d+1", i)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		must(b, p.SetInput("A1", strconv.Itoa(i)))
	}
}

func BenchmarkWideDependencyFanOut(b *testing.B) {
	p := benchProject(600, 4)
	must(b, p.SetInput("A1", "100"))
	must(b, p.Batch(func() error {
		for i := 1; i < 500; i++ {
			if err := p.SetInput(at(i, 1), "=A1*2"); err != nil {
				return err
			}
		}
		return nil
	}))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		must(b, p.SetInput("A1", strconv.Itoa(i)))
	}
}

func BenchmarkLargeRangeSUM(b *testing.B) {
	p := benchProject(1000, 4)
	must(b, p.Batch(func() error {
		for i := 0; i < 1000; i++ {
			if err := p.SetInput(at(i, 0), strconv.Itoa(i+1)); err != nil {
				return err
			}
		}
		return p.SetInput("B1", "=SUM(A1:A1000)")
	}))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		must(b, p.SetInput("A500", strconv.Itoa(i)))
	}
}

func BenchmarkSpillResize(b *testing.B) {
	p := benchProject(500, 4)
	must(b, p.SetInput("A1", "=SEQUENCE(B1)"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		must(b, p.SetInput("B1", strconv.Itoa(1+i%400)))
	}
}

func BenchmarkVolatileFunctions(b *testing.B) {
	p := benchProject(100, 4)
	for i := 0; i < 50; i++ {
		must(b, p.SetInput(at(i, 0), "=NOW()"))
		must(b, p.SetInput(at(i, 1), "=RAND()"))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Recalculate()
	}
}

func BenchmarkMultiGridReferences(b *testing.B) {
	p := benchProject(100, 4)
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("Grid%d", i)
		_, err := p.AddGrid(name)
		must(b, err)
		for row := 0; row < 20; row++ {
			must(b, p.SetInput(name+"!"+at(row, 0), strconv.Itoa(row)))
		}
	}
	must(b, p.SetInput("A1", "=SUM(Grid0!A1:A20)+SUM(Grid1!A1:A20)+SUM(Grid2!A1:A20)+SUM(Grid3!A1:A20)"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		must(b, p.SetInput("Grid2!A5", strconv.Itoa(i)))
	}
}

func BenchmarkInsertRowsRewrite(b *testing.B) {
	p := benchProject(300, 4)
	must(b, p.Batch(func() error {
		for i := 1; i < 200; i++ {
			if err := p.SetInput(at(i, 0), fmt.Sprintf("=A%d+B%d", i, i)); err != nil {
				return err
			}
		}
		return nil
	}))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		must(b, p.InsertRowsBefore("", 0, 1))
		_, err := p.Undo()
		must(b, err)
	}
}

func BenchmarkCircularReferenceDetection(b *testing.B) {
	p := benchProject(100, 4)
	for i := 0; i < 50; i++ {
		must(b, p.SetInput(at(i, 0), fmt.Sprintf("=A%d", (i+1)%50+1)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		must(b, p.SetInput("B1", strconv.Itoa(i)))
		p.structureChanged()
		p.settle()
	}
}
