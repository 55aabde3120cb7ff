package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"

	"glacia/pkg/compiler"
	"glacia/pkg/grid"
	"glacia/pkg/store"
	"glacia/pkg/utils"
	"glacia/pkg/vm"
)

const (
	screenWidth  = 960
	screenHeight = 540

	charWidth  = 7
	lineHeight = 15

	// Frame tiles are laid out two per row on the left half.
	tileCols   = 2
	tileWidth  = screenWidth / 4
	tileHeight = 9 * lineHeight

	outputLeft = screenWidth / 2
	outputTop  = 2 * lineHeight
)

var face = text.NewGoXFace(basicfont.Face7x13)

type Game struct {
	m       *vm.Machine
	thread  string
	running bool
	done    bool
	steps   int
	speed   int // instructions per tick while running
	err     error
	frames  []vm.Frame
}

func newGame(m *vm.Machine, thread string) *Game {
	g := &Game{m: m, thread: thread, speed: 1}
	g.refresh()
	return g
}

// step runs up to n instructions and refreshes the frame view.
func (g *Game) step(n int) {
	if g.done || g.err != nil {
		return
	}
	ctx := context.Background()
	for i := 0; i < n; i++ {
		ran, err := g.m.RunOneLine(ctx, g.thread)
		if err != nil {
			g.err = err
			g.running = false
			break
		}
		if !ran {
			g.done = true
			g.running = false
			break
		}
		g.steps++
	}
	g.refresh()
}

func (g *Game) refresh() {
	frames, err := g.m.Inspect(g.thread)
	if err != nil {
		g.err = err
		return
	}
	g.frames = frames
}

func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) || inpututil.IsKeyJustPressed(ebiten.KeyN) {
		g.step(1)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		g.running = !g.running
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyUp) && g.speed < 1000 {
		g.speed *= 10
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyDown) && g.speed > 1 {
		g.speed /= 10
	}
	if g.running {
		g.step(g.speed)
	}
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	ebitenutil.DebugPrintAt(screen, g.status(), 4, 2)

	for i, f := range g.frames {
		x, y := grid.GetGridCoords(i, tileCols)
		px := 4 + x*tileWidth
		py := outputTop + y*tileHeight
		if py+tileHeight > screenHeight {
			break
		}
		drawLines(screen, frameLines(f, g.m.Describe(f.Instruction), tileWidth/charWidth-1), px, py)
	}

	rows := (screenHeight - outputTop) / lineHeight
	out := grid.Tail(grid.Wrap(g.m.Output(), (screenWidth-outputLeft)/charWidth-1), rows-1)
	drawLines(screen, append([]string{"output"}, out...), outputLeft, outputTop)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

func (g *Game) status() string {
	state := "paused"
	switch {
	case g.err != nil:
		state = g.err.Error()
	case g.done:
		state = "finished"
	case g.running:
		state = fmt.Sprintf("running x%d", g.speed)
	}
	return fmt.Sprintf("thread %s  steps %d  %s   [space] step  [enter] run/pause  [up/down] speed",
		g.thread, g.steps, state)
}

func drawLines(screen *ebiten.Image, lines []string, x, y int) {
	for i, line := range lines {
		op := &text.DrawOptions{}
		op.GeoM.Translate(float64(x), float64(y+i*lineHeight))
		text.Draw(screen, line, face, op)
	}
}

// frameLines renders one call frame as a tile: header, next instruction,
// then its locals, each clipped to cols runes.
func frameLines(f vm.Frame, next string, cols int) []string {
	lines := []string{fmt.Sprintf("#%d %s (%s)", f.Depth, f.Function, f.Status)}
	if next != "" {
		lines = append(lines, "> "+next)
	}
	for _, v := range f.Locals {
		lines = append(lines, fmt.Sprintf("  %s %s = %s", v.Type, v.Name, v.Value))
	}
	for i, l := range lines {
		if r := []rune(l); cols > 0 && len(r) > cols {
			lines[i] = string(r[:cols])
		}
	}
	return lines
}

func main() {
	backend := flag.String("store", store.BackendMemory, "store backend: memory, snapshot or bolt")
	storePath := flag.String("store-path", "", "file used by the snapshot and bolt backends")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: desktop [-store backend -store-path file] <file.gl>")
		os.Exit(2)
	}

	file, err := utils.ReadSource(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to read source file: %v", err)
	}
	img, err := compiler.Compile(file.Text, file.BaseDir)
	if err != nil {
		log.Fatalf("Compilation failed: %v", err)
	}

	st, err := store.Open(*backend, *storePath)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	m := vm.New(st, vm.WithCapture())
	if err := m.Load(img); err != nil {
		log.Fatalf("load: %v", err)
	}
	thread, err := m.Start(context.Background())
	if err != nil {
		log.Fatalf("start: %v", err)
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("glacia: " + file.FullPath)

	if err := ebiten.RunGame(newGame(m, thread)); err != nil {
		log.Fatal(err)
	}
}
