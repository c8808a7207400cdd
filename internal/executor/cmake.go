package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/cxxpack/internal/config"
	"git.home.luguber.info/inful/cxxpack/internal/prefix"
)

// depHint identifies an already-installed dependency for find_package hints.
type depHint struct {
	Name      string
	CMakeName string
}

// Baseline flags applied to every package. -fPIC keeps static archives usable
// from shared libraries; the pedantic suppressions keep old upstream code
// compiling on newer toolchains.
const baseCompileFlags = "-fPIC -Wno-pedantic -Wno-error=pedantic"

// cmakeArgs assembles the configure arguments for one package against the
// cell's shared install prefix. deps lists only dependencies that have
// already been installed into the prefix.
func cmakeArgs(pkg config.Package, pfx *prefix.Prefix, deps []depHint) []string {
	var args []string

	if cc := os.Getenv("CC"); cc != "" {
		args = append(args, "-DCMAKE_C_COMPILER="+cc)
	}
	if cxx := os.Getenv("CXX"); cxx != "" {
		args = append(args, "-DCMAKE_CXX_COMPILER="+cxx)
	}

	buildType := pkg.BuildType
	if buildType == "" {
		buildType = string(config.BuildTypeRelease)
	}
	args = append(args,
		"-DCMAKE_BUILD_TYPE="+buildType,
		"-DCMAKE_INSTALL_PREFIX="+pfx.Root(),
	)

	cflags := baseCompileFlags
	cxxflags := baseCompileFlags
	if pkg.ExtraCFlags != "" {
		cflags += " " + pkg.ExtraCFlags
		cxxflags += " " + pkg.ExtraCFlags
	}
	if pkg.CxxStandard > 0 {
		cxxflags += fmt.Sprintf(" -std=c++%d", pkg.CxxStandard)
	}

	if len(pkg.Dependencies) > 0 {
		args = append(args, "-DCMAKE_PREFIX_PATH="+strings.Join(pfx.CMakePrefixPaths(), ";"))

		cflags += " -I" + pfx.IncludeDir()
		cxxflags += " -I" + pfx.IncludeDir()

		// both lib and lib64 get searched; which one a dependency used
		// depends on the distro's GNUInstallDirs defaults
		linkerFlags := fmt.Sprintf("-L%s -L%s",
			filepath.Join(pfx.Root(), "lib"), filepath.Join(pfx.Root(), "lib64"))
		args = append(args,
			"-DCMAKE_EXE_LINKER_FLAGS="+linkerFlags,
			"-DCMAKE_SHARED_LINKER_FLAGS="+linkerFlags,
		)

		for _, dep := range deps {
			args = append(args,
				"-D"+dep.CMakeName+"_DIR="+pfx.Root(),
				"-D"+dep.CMakeName+"_ROOT="+pfx.Root(),
			)
			if dep.CMakeName != dep.Name {
				args = append(args,
					"-D"+dep.Name+"_DIR="+pfx.Root(),
					"-D"+dep.Name+"_ROOT="+pfx.Root(),
				)
			}
			// some packages only honor the all-caps root variable
			args = append(args, "-D"+strings.ToUpper(dep.CMakeName)+"_ROOT="+pfx.Root())
		}
	} else if pkg.CxxStandard > 0 {
		args = append(args,
			fmt.Sprintf("-DCMAKE_CXX_STANDARD=%d", pkg.CxxStandard),
			"-DCMAKE_CXX_STANDARD_REQUIRED=ON",
		)
	}

	args = append(args, "-DCMAKE_C_FLAGS="+cflags, "-DCMAKE_CXX_FLAGS="+cxxflags)

	testingOverridden := false
	for _, d := range pkg.Defines {
		args = append(args, "-D"+d.Key+"="+d.Value)
		if strings.Contains(d.Key, "BUILD_TESTING") {
			testingOverridden = true
		}
	}
	if !testingOverridden {
		args = append(args, "-DBUILD_TESTING=OFF")
	}

	return args
}

// autotoolsEnv returns the process environment for ./configure, with the
// pinned compile flags merged onto any inherited CPPFLAGS/CFLAGS/CXXFLAGS/
// LDFLAGS and the prefix's pkgconfig directories added to PKG_CONFIG_PATH.
func autotoolsEnv(pkg config.Package, pfx *prefix.Prefix, base []string) []string {
	cppflags := "-fPIC"
	cflags := "-fPIC"
	cxxflags := "-fPIC"
	ldflags := ""
	if pkg.CxxStandard > 0 {
		cxxflags += fmt.Sprintf(" -std=c++%d", pkg.CxxStandard)
	}
	if len(pkg.Dependencies) > 0 {
		inc := " -I" + pfx.IncludeDir()
		cppflags += inc
		cflags += inc
		cxxflags += inc
		ldflags = "-L" + filepath.Join(pfx.Root(), "lib")
	}

	env := append([]string{}, base...)
	env = appendEnvFlag(env, "CPPFLAGS", cppflags)
	env = appendEnvFlag(env, "CFLAGS", cflags)
	env = appendEnvFlag(env, "CXXFLAGS", cxxflags)
	if strings.TrimSpace(ldflags) != "" {
		env = appendEnvFlag(env, "LDFLAGS", ldflags)
	}
	if pcs := pfx.PkgConfigPaths(); len(pcs) > 0 {
		env = appendEnvPaths(env, "PKG_CONFIG_PATH", pcs)
	}
	return env
}

// appendEnvFlag appends value onto an existing KEY= entry, or adds one.
func appendEnvFlag(env []string, key, value string) []string {
	marker := key + "="
	for i, kv := range env {
		if strings.HasPrefix(kv, marker) {
			existing := kv[len(marker):]
			if existing == "" {
				env[i] = marker + value
			} else {
				env[i] = marker + existing + " " + value
			}
			return env
		}
	}
	return append(env, marker+value)
}

// appendEnvPaths adds each path to a colon-separated KEY= entry, skipping
// paths already present.
func appendEnvPaths(env []string, key string, paths []string) []string {
	marker := key + "="
	for i, kv := range env {
		if strings.HasPrefix(kv, marker) {
			existing := kv[len(marker):]
			for _, p := range paths {
				if strings.Contains(existing, p) {
					continue
				}
				if existing == "" {
					existing = p
				} else {
					existing += ":" + p
				}
			}
			env[i] = marker + existing
			return env
		}
	}
	return append(env, marker+strings.Join(paths, ":"))
}
