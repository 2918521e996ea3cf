// seed_sri genera el script SQL de tablas paramétricas SRI (tarifas de IVA y
// tipos de identificación) a partir del XML oficial de catálogos de la Ficha
// Técnica, que viene codificado en ISO-8859-1.
//
// Uso: go run ./cmd/seed_sri [ruta/CatalogosSRI.xml]
// Por defecto busca CatalogosSRI.xml en el directorio actual.
// Escribe: internal/infrastructure/postgres/migrations/002_seed_catalogos.sql
package main

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

type catalogos struct {
	Tablas []tabla `xml:"tabla"`
}

type tabla struct {
	Nombre  string  `xml:"nombre,attr"`
	Valores []valor `xml:"valor"`
}

type valor struct {
	Codigo      string `xml:"codigo,attr"`
	Descripcion string `xml:"descripcion,attr"`
}

func main() {
	xmlPath := "CatalogosSRI.xml"
	if len(os.Args) > 1 {
		xmlPath = os.Args[1]
	}
	f, err := os.Open(xmlPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir XML: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	var cat catalogos
	dec := xml.NewDecoder(f)
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		if strings.EqualFold(charset, "ISO-8859-1") || strings.EqualFold(charset, "ISO8859-1") {
			return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
		}
		return input, nil
	}
	if err := dec.Decode(&cat); err != nil {
		fmt.Fprintf(os.Stderr, "Decodificar XML: %v\n", err)
		os.Exit(1)
	}

	moduleRoot := findModuleRoot()
	outPath := filepath.Join(moduleRoot, "internal", "infrastructure", "postgres", "migrations", "002_seed_catalogos.sql")
	out, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Crear archivo: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	fmt.Fprintln(out, "-- Generado por cmd/seed_sri. No editar a mano.")
	fmt.Fprintln(out)
	fmt.Fprintln(out, `CREATE TABLE IF NOT EXISTS catalogos_sri (
    tabla       TEXT NOT NULL,
    codigo      TEXT NOT NULL,
    descripcion TEXT NOT NULL,
    PRIMARY KEY (tabla, codigo)
);`)
	fmt.Fprintln(out)

	// Orden estable: por nombre de tabla y código
	sort.Slice(cat.Tablas, func(i, j int) bool { return cat.Tablas[i].Nombre < cat.Tablas[j].Nombre })
	for _, t := range cat.Tablas {
		valores := t.Valores
		sort.Slice(valores, func(i, j int) bool { return valores[i].Codigo < valores[j].Codigo })
		for _, v := range valores {
			if v.Codigo == "" || v.Descripcion == "" {
				continue
			}
			fmt.Fprintf(out,
				"INSERT INTO catalogos_sri (tabla, codigo, descripcion) VALUES ('%s', '%s', '%s') ON CONFLICT DO NOTHING;\n",
				sqlEscape(t.Nombre), sqlEscape(v.Codigo), sqlEscape(v.Descripcion))
		}
	}

	fmt.Printf("Escrito %s\n", outPath)
}

func sqlEscape(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "'", "''")
}

// findModuleRoot sube hasta encontrar go.mod.
func findModuleRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "."
		}
		dir = parent
	}
}
