package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/mmd_browser/config"
	"github.com/mogaika/mmd_browser/mmd"
	"github.com/mogaika/mmd_browser/utils"
	"github.com/mogaika/mmd_browser/utils/gltfutils"
)

type options struct {
	in       string
	dump     string
	save     string
	codec    string
	gltf     string
	bone     string
	rotate   string
	move     string
	morph    string
	weight   float64
	workers  int
	logLevel string
}

func parseFlags(args []string, out io.Writer) (*options, error) {
	var o options
	fs := flag.NewFlagSet("mmdtool", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&o.in, "in", "", "Path to pmd or pmx model")
	fs.StringVar(&o.dump, "dump", "", "Dump section: info, bones, morphs, materials, bodies, all")
	fs.StringVar(&o.save, "save", "", "Save (possibly posed) model to path")
	fs.StringVar(&o.codec, "codec", "", "Text codec for saved pmx: utf-16le or utf-8")
	fs.StringVar(&o.gltf, "gltf", "", "Export posed model to binary gltf path")
	fs.StringVar(&o.bone, "bone", "", "Bone name to pose")
	fs.StringVar(&o.rotate, "rotate", "", "Bone euler rotation in degrees, 'x,y,z'")
	fs.StringVar(&o.move, "move", "", "Bone translation, 'x,y,z'")
	fs.StringVar(&o.morph, "morph", "", "Morph name to apply")
	fs.Float64Var(&o.weight, "weight", 1, "Morph weight")
	fs.IntVar(&o.workers, "workers", 1, "Parallel workers for skinning")
	fs.StringVar(&o.logLevel, "log", "warn", "Log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.in == "" {
		fs.PrintDefaults()
		return nil, errors.New("-in is required")
	}
	return &o, nil
}

func parseVec3(s string) (mgl32.Vec3, error) {
	var v mgl32.Vec3
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return v, errors.Errorf("Vector %q must have 3 components", s)
	}
	for i, p := range parts {
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%g", &v[i]); err != nil {
			return v, errors.Wrapf(err, "Invalid component %q", p)
		}
	}
	return v, nil
}

func pose(m *mmd.Model, o *options) error {
	if o.bone != "" {
		b := m.FindBone(o.bone)
		if b == nil {
			return errors.Errorf("Bone %q not found", o.bone)
		}
		if o.rotate != "" {
			e, err := parseVec3(o.rotate)
			if err != nil {
				return err
			}
			b.SetLocalRotation(utils.FromEulerZYX(utils.DegreeToRadiansV3(e)))
		}
		if o.move != "" {
			v, err := parseVec3(o.move)
			if err != nil {
				return err
			}
			b.SetLocalTranslation(v)
		}
	}
	if o.morph != "" {
		morph := m.FindMorph(o.morph)
		if morph == nil {
			return errors.Errorf("Morph %q not found", o.morph)
		}
		morph.SetWeight(float32(o.weight))
	}
	m.PerformUpdate(0)
	return nil
}

func dump(w io.Writer, m *mmd.Model, section string) error {
	info := func() {
		fmt.Fprintf(w, "%v %v %q (%q)\n", m.Format(), m.Version, m.Name, m.EnglishName)
		fmt.Fprintf(w, "codec: %v, additional uvs: %d\n", m.Codec, m.AdditionalUVSize)
		for _, t := range []struct {
			name string
			t    mmd.ObjectType
		}{
			{"vertices", mmd.ObjectVertex},
			{"indices", mmd.ObjectIndex},
			{"textures", mmd.ObjectTexture},
			{"materials", mmd.ObjectMaterial},
			{"bones", mmd.ObjectBone},
			{"ik", mmd.ObjectIKConstraint},
			{"morphs", mmd.ObjectMorph},
			{"labels", mmd.ObjectLabel},
			{"rigid bodies", mmd.ObjectRigidBody},
			{"joints", mmd.ObjectJoint},
		} {
			fmt.Fprintf(w, "%-13s %d\n", t.name+":", m.Count(t.t))
		}
		box := m.AABB()
		fmt.Fprintf(w, "aabb: %v - %v\n", box.Min, box.Max)
	}

	switch section {
	case "info":
		info()
	case "bones":
		for _, b := range m.Bones {
			fmt.Fprintf(w, "%4d %-20q parent %4d world %v\n", b.Index, b.Name, b.Parent, b.WorldPosition())
		}
	case "morphs":
		for _, morph := range m.Morphs {
			fmt.Fprintf(w, "%4d %-20q %-8v weight %v\n", morph.Index, morph.Name, morph.Kind, morph.Weight())
		}
	case "materials":
		for _, mat := range m.Materials {
			fmt.Fprintf(w, "%4d %-20q indices %6d diffuse %s texture %q\n", mat.Index, mat.Name,
				mat.IndexRange.Count, utils.NewColorFloatV4(mat.Diffuse.Result).Hex(), mat.MainTexture)
		}
	case "bodies":
		utils.Dump(w, m.RigidBodies, m.Joints)
	case "all":
		info()
		utils.Dump(w, m)
	default:
		return errors.Errorf("Unknown dump section %q", section)
	}
	return nil
}

func run(args []string, stdout io.Writer) error {
	o, err := parseFlags(args, stdout)
	if err != nil {
		return err
	}
	if err := utils.SetLogLevel(o.logLevel); err != nil {
		return errors.Wrapf(err, "Invalid log level")
	}

	data, err := os.ReadFile(o.in)
	if err != nil {
		return errors.Wrapf(err, "Failed to read model")
	}
	m := mmd.NewModel(config.DefaultEncoding())
	m.SetParallel(o.workers)
	if err := m.Load(data); err != nil {
		return errors.Wrapf(err, "Failed to load %q (%v)", o.in, m.Error())
	}

	if err := pose(m, o); err != nil {
		return err
	}

	if o.dump != "" {
		if err := dump(stdout, m, o.dump); err != nil {
			return err
		}
	}

	if o.save != "" {
		if o.codec != "" {
			codec, err := config.ParseCodec(o.codec)
			if err != nil {
				return err
			}
			if err := m.SetCodec(codec); err != nil {
				return err
			}
		}
		out, err := m.Save()
		if err != nil {
			return errors.Wrapf(err, "Failed to save")
		}
		if err := os.WriteFile(o.save, out, 0666); err != nil {
			return errors.Wrapf(err, "Failed to write %q", o.save)
		}
		utils.Logger("mmdtool").Infof("Saved %d bytes to %q", len(out), o.save)
	}

	if o.gltf != "" {
		doc, err := m.ExportGLTF()
		if err != nil {
			return err
		}
		f, err := os.Create(o.gltf)
		if err != nil {
			return errors.Wrapf(err, "Failed to create %q", o.gltf)
		}
		defer f.Close()
		if err := gltfutils.ExportBinary(f, doc); err != nil {
			return errors.Wrapf(err, "Failed to export gltf")
		}
	}
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		utils.Logger("mmdtool").Fatal(err)
	}
}
