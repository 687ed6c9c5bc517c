package docker

// harnessSource runs inside the container. It loads the file bindings,
// exposes the fixed helper surface, executes the generated program with a
// restricted builtin scope, and writes the reserved result slot to
// result.json. Program faults land in fault.json; a missing result.json
// after a clean exit means the program never set the reserved variable.
//
// The restricted scope mirrors the container boundary: the container has no
// network and no mounts beyond the workspace, the scope keeps the program
// from reaching for the interpreter's ambient capabilities. Two layers,
// neither trusted alone.
const harnessSource = `import base64
import io
import json
import sys

RESULT_PATH = "result.json"
FAULT_PATH = "fault.json"


def _fault(kind, message):
    with open(FAULT_PATH, "w") as f:
        json.dump({"kind": kind, "message": message}, f)
    sys.exit(1)


def _load_files():
    with open("manifest.json") as f:
        manifest = json.load(f)
    files = {}
    for entry in manifest:
        path = "files/" + entry["file"]
        if entry["kind"] == "tabular":
            with open(path) as f:
                files[entry["id"]] = json.load(f)
        elif entry["kind"] in ("text", "pdf"):
            with open(path, encoding="utf-8", errors="replace") as f:
                files[entry["id"]] = f.read()
        else:
            with open(path, "rb") as f:
                files[entry["id"]] = f.read()
    return files


def plot_to_data_uri(fig=None, fmt="png"):
    import matplotlib
    matplotlib.use("Agg")
    import matplotlib.pyplot as plt
    if fig is None:
        fig = plt.gcf()
    buf = io.BytesIO()
    fig.savefig(buf, format=fmt, dpi=100, bbox_inches="tight")
    plt.close(fig)
    payload = base64.b64encode(buf.getvalue()).decode()
    return "data:image/%s;base64,%s" % (fmt, payload)


_ALLOWED = (
    "print", "len", "str", "int", "float", "bool", "list", "dict", "tuple",
    "set", "range", "enumerate", "zip", "min", "max", "sum", "abs", "round",
    "sorted", "reversed", "map", "filter", "any", "all", "isinstance",
    "Exception", "ValueError", "TypeError", "KeyError", "IndexError",
    "ZeroDivisionError", "StopIteration", "True", "False", "None",
)


def _restricted_builtins():
    import builtins
    return {name: getattr(builtins, name) for name in _ALLOWED if hasattr(builtins, name)}


def main():
    scope = {
        "__builtins__": _restricted_builtins(),
        "files": _load_files(),
        "plot_to_data_uri": plot_to_data_uri,
        "json": json,
        "base64": base64,
    }
    try:
        import pandas as pd
        scope["pd"] = pd
    except ImportError:
        pass
    try:
        import numpy as np
        scope["np"] = np
    except ImportError:
        pass
    try:
        import matplotlib
        matplotlib.use("Agg")
        import matplotlib.pyplot as plt
        scope["plt"] = plt
    except ImportError:
        pass

    with open("user_code.py") as f:
        source = f.read()

    try:
        exec(compile(source, "user_code.py", "exec"), scope)
    except BaseException as e:
        _fault("runtime", "%s: %s" % (type(e).__name__, e))

    if "result" not in scope:
        sys.exit(0)

    try:
        payload = json.dumps({"value": scope["result"]}, allow_nan=False)
    except (TypeError, ValueError) as e:
        _fault("result_not_serializable", str(e))
    with open(RESULT_PATH, "w") as f:
        f.write(payload)


if __name__ == "__main__":
    main()
`
