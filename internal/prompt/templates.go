package prompt

// SystemPrompt is sent as the system role on every JSON-producing call.
const SystemPrompt = `Eres un analista experto en financiamiento público y privado para personas, emprendedores y organizaciones en Chile. Respondes únicamente con JSON válido, sin texto adicional ni bloques Markdown.`

// NamesSystemPrompt is sent as the system role on the names step.
const NamesSystemPrompt = `Eres un analista experto en financiamiento público y privado en Chile. Respondes únicamente con una lista de viñetas, sin JSON ni comentarios.`

const recordSchema = `{
  "convocatorias": [
    {
      "title": "nombre oficial de la convocatoria",
      "organization": "institución que la convoca",
      "description": "descripción breve (2-3 frases)",
      "amount": "monto máximo o rango, con moneda",
      "deadline": "YYYY-MM-DD",
      "requirements": "requisitos principales",
      "source_url": "URL oficial de las bases",
      "category": "categoría temática",
      "tags": ["etiqueta"],
      "reliability_score": 0-100,
      "status": "open | closed | upcoming"
    }
  ]
}`

const singlePrompt = `Busca convocatorias de financiamiento (fondos concursables, becas, subsidios, premios) que respondan a esta consulta:

CONSULTA: %s
%s
%s

Devuelve entre 3 y 8 convocatorias reales y vigentes con este formato JSON exacto:
%s

Reglas:
- Responde SOLO con el JSON, sin explicaciones.
- Cada convocatoria debe estar directamente relacionada con la consulta.
- reliability_score refleja tu confianza en que los datos son correctos y actuales.
- Si desconoces un dato, usa "%s" en lugar de inventarlo.

Identificador de solicitud: %s (%s). Los resultados deben ser distintos a los de solicitudes anteriores; no repitas una lista genérica.`

const namesPrompt = `Lista convocatorias de financiamiento (fondos, becas, subsidios, premios) que respondan a esta consulta:

CONSULTA: %s
%s
%s

Responde solo con una lista de viñetas, una convocatoria por línea, con el formato:
- Nombre de la convocatoria – Organización

Máximo 8 líneas. Sin descripciones, montos ni comentarios.

Identificador de solicitud: %s (%s). Evita repetir listas genéricas.`

const detailPrompt = `Recibiste esta lista preliminar de convocatorias para la consulta "%s":

%s

%s
%s

Para CADA elemento de la lista, verifica lo que sabes con certeza y devuelve JSON estricto con este formato:
%s

Reglas estrictas:
- Incluye solo convocatorias de la lista; descarta las que no puedas identificar.
- NO inventes datos. Si un campo no está disponible en la fuente oficial, escribe exactamente "%s".
- deadline debe ser una fecha YYYY-MM-DD o "%s".
- reliability_score debe bajar cuando marcas campos como no disponibles.
- Responde SOLO con el JSON.

Identificador de solicitud: %s (%s).`

const parseTextPrompt = `Extrae los datos de la siguiente convocatoria. El texto fue copiado por un usuario desde una página o documento.

TEXTO:
%s

Devuelve un único objeto JSON con las claves title, organization, description, amount, deadline (YYYY-MM-DD), requirements, source_url, category, tags, reliability_score y status.
Si un dato no aparece en el texto, usa "%s". No inventes información. Responde SOLO con el JSON.`
