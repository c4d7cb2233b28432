package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/sanity-io/litter"

	"github.com/lihrs/textbus/collab"
	"github.com/lihrs/textbus/model"
	"github.com/lihrs/textbus/shared"
)

type peer struct{ name string }

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zerolog.DebugLevel).With().Timestamp().Logger()

	registry := model.NewRegistry()
	registry.RegisterComponent("paragraph", func(state *model.MapModel) (*model.Component, error) {
		return model.NewComponent("paragraph", state), nil
	})
	registry.RegisterFormatter(model.Formatter{Name: "bold"})

	body := model.NewSlot(model.ContentText, model.ContentBlockComponent)
	state := model.NewMapModel()
	state.Set("body", body)
	root := model.NewComponent("root", state)

	session := &collab.Session{
		Doc:       shared.NewDoc(),
		Root:      root,
		Scheduler: model.NewScheduler(),
		Registry:  registry,
		Selection: model.NewSelection(),
	}
	engine := collab.NewEngine(session, collab.Options{StackSize: 100, Logger: &logger})
	engine.Listen()

	// a local edit cycle, the way the embedding editor drives one
	session.Scheduler.BeforeChange()
	body.InsertText("hello ", nil)
	body.InsertText("world", map[string]any{"bold": true})
	session.Scheduler.DocChanged(model.SourceLocal)
	session.Selection.Select(body, body.Length(), body, body.Length())

	// a concurrent edit from another replica, identified by its own origin
	text, _ := engine.Bridge().TextOf(body)
	session.Doc.Transact(&peer{name: "remote"}, func() {
		text.InsertString(0, ">> ", nil)
	})

	fmt.Printf("after remote insert: %q\n", body.String())
	fmt.Printf("selection follows:   focus=%d\n", session.Selection.Focus().Offset)

	engine.Back()
	fmt.Printf("after undo:          %q\n", body.String())
	engine.Forward()
	fmt.Printf("after redo:          %q\n", body.String())

	litter.Config.HidePrivateFields = true
	litter.Dump(body.Fragments())

	if err := engine.Err(); err != nil {
		logger.Fatal().Err(err).Msg("replay failed")
	}
	engine.Destroy()
}
