package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/abhisek/predinator/internal/answer"
	"github.com/abhisek/predinator/internal/catalog"
	"github.com/abhisek/predinator/internal/learning"
)

// errQuit ends the plain loop when the player types "quit" or input ends.
var errQuit = errors.New("quit")

// plain is the line-based front end used with --plain or without a terminal.
type plain struct {
	ctx  context.Context
	game Game
	in   *bufio.Scanner
	out  io.Writer
}

// RunPlain plays games over line-oriented in and out until the player quits or
// input ends.
func RunPlain(ctx context.Context, game Game, in io.Reader, out io.Writer) error {
	p := &plain{ctx: ctx, game: game, in: bufio.NewScanner(in), out: out}
	fmt.Fprintln(out, "Think of a character and I'll try to guess it. Type quit to stop.")
	for {
		err := p.round()
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			return err
		}
		again, err := p.yesNo("Play again? (yes/no): ")
		if errors.Is(err, errQuit) || (err == nil && !again) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (p *plain) round() error {
	e, err := p.game.NewGame(p.ctx)
	if err != nil {
		return fmt.Errorf("start game: %w", err)
	}

	for {
		q, leaf, err := e.NextQuestion()
		if err != nil {
			return err
		}
		if leaf {
			break
		}
		for {
			text, err := p.ask(fmt.Sprintf("%s (yes/no/don't know): ", q.Prompt))
			if err != nil {
				return err
			}
			if err := p.game.Answer(e, text); err != nil {
				if errors.Is(err, answer.ErrInvalidAnswer) {
					fmt.Fprintln(p.out, "Please answer yes, no or don't know.")
					continue
				}
				return err
			}
			break
		}
	}

	g, guessErr := p.game.Guess(e)
	if guessErr == nil {
		right, err := p.yesNo(fmt.Sprintf("Is it %s? (yes/no): ", g.Subject))
		if err != nil {
			return err
		}
		p.game.RecordOutcome(right)
		if right {
			fmt.Fprintln(p.out, "I win!")
			return nil
		}
	} else {
		fmt.Fprintln(p.out, "I'm stumped!")
	}

	name, err := p.ask("Who were you thinking of? (blank to skip): ")
	if err != nil {
		return err
	}
	if name == "" {
		return nil
	}
	known, err := p.game.KnowsSubject(p.ctx, name)
	if err != nil {
		return err
	}
	if known {
		fmt.Fprintf(p.out, "I already know %s.\n", name)
		return nil
	}

	path := e.PathAnswers()
	if guessErr == nil {
		add, err := p.yesNo(fmt.Sprintf("Add a question that tells %s apart from %s? (yes/no): ", name, g.Subject))
		if err != nil {
			return err
		}
		if add {
			prep, err := p.addQuestion(name, g.Subject, path)
			if err != nil {
				return err
			}
			if prep != nil {
				name, path = prep.SubjectName, prep.PathAnswers
			}
		}
	}

	res, err := p.game.LearnNewSubject(p.ctx, name, path, nil)
	switch {
	case err != nil && !res.Saved:
		fmt.Fprintf(p.out, "Could not learn %s: %v\n", name, err)
	case err != nil:
		fmt.Fprintf(p.out, "Saved %s, but retraining failed: %v\n", name, err)
	default:
		fmt.Fprintf(p.out, "Thanks! Next time I'll know %s.\n", name)
	}
	return nil
}

// addQuestion collects and adds a question. It returns nil without error when
// the player gives up.
func (p *plain) addQuestion(actual, guessed string, path map[string]answer.Value) (*learning.PreparedLearn, error) {
	prompt, err := p.ask(fmt.Sprintf("Type a yes/no question that tells %s apart from %s: ", actual, guessed))
	if err != nil || prompt == "" {
		return nil, err
	}
	for {
		suggested := learning.SuggestAttributeID(prompt)
		id, err := p.ask(fmt.Sprintf("Attribute id [%s]: ", suggested))
		if err != nil {
			return nil, err
		}
		if id == "" {
			id = suggested
		}
		forActual, err := p.answer(fmt.Sprintf("For %s the answer is (yes/no/don't know): ", actual))
		if err != nil {
			return nil, err
		}
		forGuessed, err := p.answer(fmt.Sprintf("For %s the answer is (yes/no/don't know): ", guessed))
		if err != nil {
			return nil, err
		}

		prep, err := p.game.AddQuestion(p.ctx, learning.AddQuestionRequest{
			GuessedName:      guessed,
			ActualName:       actual,
			Path:             path,
			Prompt:           prompt,
			AttributeID:      id,
			AnswerForActual:  forActual,
			AnswerForGuessed: forGuessed,
		})
		switch {
		case err == nil:
			return prep, nil
		case errors.Is(err, catalog.ErrDuplicateAttribute), errors.Is(err, learning.ErrInvalidAttributeID):
			fmt.Fprintf(p.out, "%v, try another id.\n", err)
		default:
			fmt.Fprintf(p.out, "Could not add the question: %v\n", err)
			return nil, nil
		}
	}
}

func (p *plain) ask(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", errQuit
	}
	text := strings.TrimSpace(p.in.Text())
	if strings.EqualFold(text, "quit") {
		return "", errQuit
	}
	return text, nil
}

// answer asks until the reply is a valid answer and returns it.
func (p *plain) answer(prompt string) (string, error) {
	for {
		text, err := p.ask(prompt)
		if err != nil {
			return "", err
		}
		if _, err := answer.ToNumeric(text); err == nil {
			return text, nil
		}
		fmt.Fprintln(p.out, "Please answer yes, no or don't know.")
	}
}

func (p *plain) yesNo(prompt string) (bool, error) {
	for {
		text, err := p.ask(prompt)
		if err != nil {
			return false, err
		}
		v, err := answer.ToNumeric(text)
		if err == nil && !v.IsUnknown() {
			return v == answer.Yes, nil
		}
		fmt.Fprintln(p.out, "Please answer yes or no.")
	}
}
