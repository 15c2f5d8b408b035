package cli

import (
	"encoding/json"
	"fmt"
	"io"

	ouroboros "github.com/i5heu/ouroboros-objects"
	"github.com/i5heu/ouroboros-objects/pkg/element"
	"github.com/i5heu/ouroboros-objects/pkg/types"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
)

// ElementInfo is the listing entry of one element.
type ElementInfo struct {
	Key      string   `json:"key"`
	Type     string   `json:"type"`
	Leaf     bool     `json:"leaf"`
	Size     int      `json:"size"`
	Children []string `json:"children,omitempty"`
}

func describe(e *element.Element) ElementInfo {
	info := ElementInfo{
		Key:  e.Key.String(),
		Type: e.Type.String(),
		Leaf: e.IsLeaf,
		Size: len(e.Value),
	}
	for _, k := range e.ChildKeys {
		info.Children = append(info.Children, k.String())
	}
	return info
}

func NewLsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List every element in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer db.Close()
			return runLs(cmd, db, formatter{format: rootOpts.Format, w: cmd.OutOrStdout()})
		},
	}
}

func runLs(cmd *cobra.Command, db *ouroboros.ObjectDB, f formatter) error {
	ctx := cmd.Context()
	keys, err := db.Keys(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "list keys", err)
	}

	infos := make([]ElementInfo, 0, len(keys))
	for _, k := range keys {
		e, err := db.Get(ctx, k)
		if err != nil {
			return WrapExitError(ExitFailure, "read "+k.String(), err)
		}
		infos = append(infos, describe(e))
	}

	return f.emit(infos, func(w io.Writer) {
		for _, info := range infos {
			fmt.Fprintf(w, "%s  %-12s leaf=%-5t children=%d bytes=%d\n",
				info.Key, info.Type, info.Leaf, len(info.Children), info.Size)
		}
	})
}

// CatResult is an element with its decoded payload. Payload is empty when
// the element type is not registered.
type CatResult struct {
	ElementInfo
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewCatCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <key>",
		Short: "Print one element and its decoded record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := types.KeyFromHex(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "parse key", err)
			}
			db, err := openDB(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer db.Close()
			return runCat(cmd, db, key, formatter{format: rootOpts.Format, w: cmd.OutOrStdout()})
		},
	}
}

func runCat(cmd *cobra.Command, db *ouroboros.ObjectDB, key types.Key, f formatter) error {
	e, err := db.Get(cmd.Context(), key)
	if err != nil {
		return WrapExitError(ExitFailure, "read "+key.String(), err)
	}
	res := CatResult{ElementInfo: describe(e)}

	var text string
	if msg, err := db.Registry().New(e.Type); err == nil {
		m := msg.Interface()
		if err := (proto.UnmarshalOptions{AllowPartial: true}).Unmarshal(e.Value, m); err != nil {
			return WrapExitError(ExitFailure, "decode "+key.String(), err)
		}
		text = prototext.MarshalOptions{Multiline: true, AllowPartial: true}.Format(m)
		res.Payload, err = protojson.MarshalOptions{AllowPartial: true}.Marshal(m)
		if err != nil {
			return WrapExitError(ExitFailure, "encode "+key.String(), err)
		}
	}

	return f.emit(res, func(w io.Writer) {
		fmt.Fprintf(w, "key:      %s\n", res.Key)
		fmt.Fprintf(w, "type:     %s\n", res.Type)
		fmt.Fprintf(w, "leaf:     %t\n", res.Leaf)
		for _, c := range res.Children {
			fmt.Fprintf(w, "child:    %s\n", c)
		}
		if text != "" {
			fmt.Fprintf(w, "\n%s", text)
		} else {
			fmt.Fprintf(w, "\n(%d bytes of an unregistered type)\n", res.Size)
		}
	})
}

func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check every element digest and child reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer db.Close()
			return runVerify(cmd, db, formatter{format: rootOpts.Format, w: cmd.OutOrStdout()})
		},
	}
}

// VerifyResult is the JSON form of a verification report.
type VerifyResult struct {
	OK              bool     `json:"ok"`
	Checked         int      `json:"checked"`
	Corrupted       []string `json:"corrupted,omitempty"`
	MissingChildren []string `json:"missing_children,omitempty"`
}

func runVerify(cmd *cobra.Command, db *ouroboros.ObjectDB, f formatter) error {
	report, err := db.Verify(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "verify", err)
	}

	res := VerifyResult{OK: report.OK(), Checked: report.Checked}
	for _, k := range report.Corrupted {
		res.Corrupted = append(res.Corrupted, k.String())
	}
	for _, k := range report.MissingChildren {
		res.MissingChildren = append(res.MissingChildren, k.String())
	}

	if err := f.emit(res, func(w io.Writer) {
		fmt.Fprintf(w, "checked %d elements\n", res.Checked)
		for _, k := range res.Corrupted {
			fmt.Fprintf(w, "corrupted %s\n", k)
		}
		for _, k := range res.MissingChildren {
			fmt.Fprintf(w, "missing   %s\n", k)
		}
		if res.OK {
			fmt.Fprintln(w, "ok")
		}
	}); err != nil {
		return err
	}

	if !res.OK {
		return NewExitError(ExitFailure, "store is damaged")
	}
	return nil
}
