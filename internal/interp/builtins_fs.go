package interp

import "os"

func init() {
	registerFunc("fs", "read", fsRead)
	registerFunc("fs", "write", fsWrite)
	registerFunc("fs", "exists", fsExists)
}

func fsRead(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	path, err := argStr(args, 0, "path")
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, IOError("reading "+path, err)
	}
	return Str(raw), nil
}

func fsWrite(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	path, err := argStr(args, 0, "path")
	if err != nil {
		return nil, err
	}
	if len(args) != 2 {
		return nil, ArityErrorf("fs.write expects 2 arguments, got %d", len(args))
	}
	var data []byte
	switch v := args[1].(type) {
	case Str:
		data = []byte(v)
	case Bytes:
		data = v
	default:
		return nil, TypeErrorf("fs.write expects a string or bytes, got %s", v.Kind())
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, IOError("writing "+path, err)
	}
	return Null{}, nil
}

func fsExists(ip *Interp, args []Value, opts map[string]Value) (Value, error) {
	if err := rejectUnknownOpts(opts); err != nil {
		return nil, err
	}
	path, err := argStr(args, 0, "path")
	if err != nil {
		return nil, err
	}
	_, err = os.Stat(path)
	return Bool(err == nil), nil
}
